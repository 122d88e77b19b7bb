package preview

import (
	"strings"
	"testing"

	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

func reactProject() vfs.FileMap {
	return vfs.FileMap{
		"/index.html": {Code: "<html><body><div id=\"root\"></div></body></html>"},
		"/src/main.jsx": {Code: `import React from 'react'
import App from './App.jsx'
`},
		"/src/App.jsx": {Code: `import './App.css'
import React from 'react'

export default function App() {
  const [count, setCount] = useState(0)
  return <button onClick={() => setCount(count + 1)}>{count}</button>
}
`},
		"/src/App.css": {Code: "button { color: red; }\nbody { margin: 0; }"},
	}
}

func TestSynthesize_OK(t *testing.T) {
	s := NewWithScope("test-scope")
	result := s.Synthesize(reactProject())

	if result.Kind != KindOK {
		t.Fatalf("kind = %q, want ok (files: %v)", result.Kind, result.UnsupportedFiles)
	}
	if result.ScopeClass != "test-scope" {
		t.Errorf("scope class = %q", result.ScopeClass)
	}
	if !strings.Contains(result.Source, "React.createElement") {
		t.Error("expected assembled program to mount via React.createElement")
	}
	if !strings.Contains(result.Source, "const __APP__ = ") {
		t.Error("expected default export rewritten to a local binding")
	}
	if strings.Contains(result.Source, "export default") {
		t.Error("export default must not survive the rewrite")
	}
	if strings.Contains(result.Source, "import React") {
		t.Error("bare package imports must be stripped")
	}
	if !strings.Contains(result.Source, "React.useState") {
		t.Error("expected bare hooks namespaced onto React")
	}
	if !strings.Contains(result.Stylesheet, ".test-scope") {
		t.Error("expected stylesheet scoped to the instance class")
	}
	// /src/App.css has a body rule; it must target the scope class instead.
	if !strings.Contains(result.Stylesheet, ".test-scope {") {
		t.Error("expected body selector rewritten to the scope class")
	}
	if strings.Contains(result.Stylesheet, "body {") {
		t.Error("raw body selector must not survive scoping")
	}
}

func TestSynthesize_NoEntry(t *testing.T) {
	s := New()
	result := s.Synthesize(vfs.FileMap{
		"/index.html": {Code: "<html><body>static</body></html>"},
	})
	if result.Kind != KindNothing {
		t.Fatalf("kind = %q, want nothing", result.Kind)
	}
	if result.StaticMarkup == "" {
		t.Error("expected /index.html offered as static fallback")
	}
}

func TestSynthesize_CommonJSRejected(t *testing.T) {
	files := reactProject()
	files["/src/legacy.js"] = vfs.File{Code: "const fs = require('fs')\nmodule.exports = {}"}

	s := New()
	result := s.Synthesize(files)
	if result.Kind != KindUnsupported {
		t.Fatalf("kind = %q, want unsupported", result.Kind)
	}
	if len(result.UnsupportedFiles) != 1 || result.UnsupportedFiles[0] != "/src/legacy.js" {
		t.Errorf("unsupported files = %v", result.UnsupportedFiles)
	}
	if result.StaticMarkup == "" {
		t.Error("expected static markup fallback alongside the rejection")
	}
}

func TestSynthesize_RelativeImportsKept(t *testing.T) {
	files := reactProject()
	files["/src/App.jsx"] = vfs.File{Code: `import Button from './Button.jsx'
export default function App() { return <Button /> }
`}
	files["/src/Button.jsx"] = vfs.File{Code: `import './Button.css'
export default function Button() { return <button>hi</button> }
`}
	files["/src/Button.css"] = vfs.File{Code: ".btn { padding: 4px; }"}

	s := NewWithScope("s")
	result := s.Synthesize(files)
	if result.Kind != KindOK {
		t.Fatalf("kind = %q, want ok", result.Kind)
	}
	if !strings.Contains(result.Source, "./Button.jsx") {
		t.Error("relative imports must survive the rewrite")
	}
	// Button.css is reachable transitively through App's import of Button.
	if !strings.Contains(result.Stylesheet, ".btn") {
		t.Error("expected transitively imported stylesheet collected")
	}
}

func TestSynthesize_UseClientStripped(t *testing.T) {
	files := reactProject()
	files["/src/App.jsx"] = vfs.File{Code: `'use client'
export default function App() { return <p>x</p> }
`}
	s := New()
	result := s.Synthesize(files)
	if result.Kind != KindOK {
		t.Fatalf("kind = %q, want ok", result.Kind)
	}
	if strings.Contains(result.Source, "use client") {
		t.Error("'use client' pragma must be stripped")
	}
}

func TestNew_RandomScopeClasses(t *testing.T) {
	a, b := New(), New()
	if a.ScopeClass() == b.ScopeClass() {
		t.Error("expected distinct per-instance scope classes")
	}
	if !strings.HasPrefix(a.ScopeClass(), "live-preview-") {
		t.Errorf("scope class = %q", a.ScopeClass())
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := NewWithScope("fixed")
	files := reactProject()
	first := s.Synthesize(files)
	second := s.Synthesize(files)
	if first.Source != second.Source || first.Stylesheet != second.Stylesheet {
		t.Error("synthesis must be a pure function of the file map")
	}
}
