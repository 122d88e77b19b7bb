// Package preview derives a runnable single-file program and a scoped
// stylesheet from a project's flat file map, for the browser's live preview
// pane. The transform is deliberately lightweight pattern substitution on
// source text, not a parser; it only supports import/export-style modules.
package preview

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

// Kind classifies a synthesis outcome.
type Kind string

const (
	// KindOK means Source holds a runnable program.
	KindOK Kind = "ok"
	// KindNothing means no conventional entry or root component exists.
	KindNothing Kind = "nothing"
	// KindUnsupported means CommonJS patterns were detected; the preview
	// refuses to synthesize and reports the offending files instead.
	KindUnsupported Kind = "unsupported"
)

// Result is the outcome of one synthesis pass. Unsupported and Nothing
// results may carry StaticMarkup when the project has a plain /index.html
// that can be rendered in a sandboxed frame as a fallback.
type Result struct {
	Kind             Kind     `json:"kind"`
	Source           string   `json:"source,omitempty"`
	Stylesheet       string   `json:"stylesheet,omitempty"`
	ScopeClass       string   `json:"scope_class,omitempty"`
	UnsupportedFiles []string `json:"unsupported_files,omitempty"`
	StaticMarkup     string   `json:"static_markup,omitempty"`
}

// Conventional bootstrap locations, checked in order; first match wins.
var (
	entryCandidates = []string{"/src/main.jsx", "/src/index.jsx", "/src/main.js", "/src/index.js"}
	appCandidates   = []string{"/src/App.jsx", "/src/App.js", "/src/App.tsx", "/src/App.ts"}
)

const staticMarkupPath = "/index.html"

// reactHooks are the state/effect primitives rewritten onto the injected
// React scope object so the synthesized program needs no bare imports.
var reactHooks = []string{
	"useState", "useEffect", "useRef", "useMemo", "useCallback",
	"useContext", "useReducer", "useLayoutEffect", "useImperativeHandle",
	"useDebugValue",
}

var (
	commonJSPattern   = regexp.MustCompile(`\brequire\s*\(|module\.exports|exports\.`)
	jsFilePattern     = regexp.MustCompile(`\.(js|jsx)$`)
	cssImportPattern  = regexp.MustCompile(`(?m)^import\s+['"](.+?\.css)['"];?\s*$`)
	useClientPattern  = regexp.MustCompile(`(?m)^\s*['"]use client['"];?\s*`)
	importFromPattern = regexp.MustCompile(`(?m)^import\s+[^;\n]+?from\s+['"]([^'"]+)['"];?\s*$`)
	bareImportPattern = regexp.MustCompile(`(?m)^import\s+['"]([^'"]+)['"];?\s*$`)
	exportDefaultRe   = regexp.MustCompile(`export\s+default\s+`)
	exportKeywordRe   = regexp.MustCompile(`(?m)^\s*export\s+`)
	relImportPattern  = regexp.MustCompile(`(?m)^import[^;\n]+?from\s+['"](.+?\.jsx?)['"];?\s*$`)
)

// Synthesizer turns file maps into preview programs. Each instance carries a
// generated scope class so concurrent previews on one host page cannot bleed
// styles into each other.
type Synthesizer struct {
	scopeClass string
}

// New creates a Synthesizer with a random per-instance scope class.
func New() *Synthesizer {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return &Synthesizer{scopeClass: "live-preview-" + hex.EncodeToString(b)}
}

// NewWithScope creates a Synthesizer with a fixed scope class. Deterministic
// output for tests and for stable per-project preview identity.
func NewWithScope(scopeClass string) *Synthesizer {
	return &Synthesizer{scopeClass: scopeClass}
}

// ScopeClass returns the wrapper class selectors are scoped to.
func (s *Synthesizer) ScopeClass() string {
	return s.scopeClass
}

// Synthesize recomputes the preview program from the current file map. It is
// a pure function of its input and safe to re-run on every edit.
func (s *Synthesizer) Synthesize(files vfs.FileMap) Result {
	if offenders := detectCommonJS(files); len(offenders) > 0 {
		return Result{
			Kind:             KindUnsupported,
			UnsupportedFiles: offenders,
			StaticMarkup:     files[staticMarkupPath].Code,
		}
	}

	entry := firstPresent(files, entryCandidates)
	appPath := firstPresent(files, appCandidates)
	if entry == "" || appPath == "" {
		return Result{Kind: KindNothing, StaticMarkup: files[staticMarkupPath].Code}
	}

	appCode := rewriteComponent(files[appPath].Code)

	cssPaths := collectStylesheets(files, appPath)
	var cssParts []string
	for _, p := range cssPaths {
		if code := files[p].Code; code != "" {
			cssParts = append(cssParts, code)
		}
	}
	scoped := ScopeCSS(strings.Join(cssParts, "\n"), s.scopeClass)

	return Result{
		Kind:       KindOK,
		Source:     assembleProgram(appCode, scoped, s.scopeClass),
		Stylesheet: scoped,
		ScopeClass: s.scopeClass,
	}
}

// detectCommonJS returns the sorted paths of all files using dynamic-require
// or module-exports patterns.
func detectCommonJS(files vfs.FileMap) []string {
	var offenders []string
	for _, p := range files.Paths() {
		if commonJSPattern.MatchString(files[p].Code) {
			offenders = append(offenders, p)
		}
	}
	return offenders
}

func firstPresent(files vfs.FileMap, candidates []string) string {
	for _, c := range candidates {
		if _, ok := files[c]; ok {
			return c
		}
	}
	return ""
}

// rewriteComponent converts a root-component module into plain script form:
// pragmas and unresolvable imports are stripped, the default export becomes
// a local binding, and bare hook calls are namespaced onto the injected
// React scope.
func rewriteComponent(code string) string {
	code = cssImportPattern.ReplaceAllString(code, "")
	code = useClientPattern.ReplaceAllString(code, "")

	// Bare (non-relative) imports reference external packages the browser
	// cannot resolve; the injected scope supplies React, everything else
	// must go.
	code = importFromPattern.ReplaceAllStringFunc(code, func(stmt string) string {
		spec := importFromPattern.FindStringSubmatch(stmt)[1]
		if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
			return stmt
		}
		return ""
	})
	code = bareImportPattern.ReplaceAllStringFunc(code, func(stmt string) string {
		spec := bareImportPattern.FindStringSubmatch(stmt)[1]
		if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
			return stmt
		}
		return ""
	})

	code = exportDefaultRe.ReplaceAllString(code, "const __APP__ = ")
	code = exportKeywordRe.ReplaceAllString(code, "")

	for _, hook := range reactHooks {
		// Only bare references: a preceding "." or word character means the
		// call is already namespaced or part of a longer identifier.
		re := regexp.MustCompile(`(^|[^.\w])` + hook + `\b`)
		code = re.ReplaceAllString(code, "${1}React."+hook)
	}
	return code
}

// collectStylesheets gathers the css paths reachable from start by following
// same-project relative component imports transitively. A visited set keeps
// import cycles from recursing forever.
func collectStylesheets(files vfs.FileMap, start string) []string {
	cssByFile := make(map[string][]string)
	for _, p := range files.Paths() {
		if !jsFilePattern.MatchString(p) {
			continue
		}
		for _, m := range cssImportPattern.FindAllStringSubmatch(files[p].Code, -1) {
			cssPath := resolveImport(m[1])
			if _, ok := files[cssPath]; ok {
				cssByFile[p] = append(cssByFile[p], cssPath)
			}
		}
	}

	visited := make(map[string]bool)
	seen := make(map[string]bool)
	var ordered []string

	var follow func(path string)
	follow = func(path string) {
		if visited[path] {
			return
		}
		visited[path] = true

		for _, css := range cssByFile[path] {
			if !seen[css] {
				seen[css] = true
				ordered = append(ordered, css)
			}
		}

		for _, m := range relImportPattern.FindAllStringSubmatch(files[path].Code, -1) {
			target := resolveImport(m[1])
			if _, ok := files[target]; ok {
				follow(target)
			}
		}
	}
	follow(start)

	return ordered
}

// resolveImport maps an import specifier to an absolute project path.
// Relative specifiers resolve against the conventional /src root.
func resolveImport(spec string) string {
	if strings.HasPrefix(spec, "/") {
		return spec
	}
	spec = strings.TrimPrefix(spec, "./")
	return "/src/" + spec
}

// assembleProgram emits the self-contained preview source: a require shim
// that fails loudly if the static CommonJS check missed something, a style
// injector that mounts the scoped stylesheet into the document head and
// removes it on unmount, and the app wrapped in a scope-classed div.
func assembleProgram(appCode, scopedCSS, scopeClass string) string {
	cssLiteral := jsString(scopedCSS)

	requireShim := `const require = (name) => { throw new Error('require() is not supported in the in-browser preview. Convert to ESM imports or run the project in a bundler.'); }; const module = { exports: {} }; const exports = module.exports;`

	injector := fmt.Sprintf(
		`function __INJECT_CSS(){ React.useEffect(()=>{ if(typeof document !== 'undefined'){ const s=document.createElement('style'); s.setAttribute('data-live-scope','%s'); s.textContent = %s; document.head.appendChild(s); return ()=>{ try{ document.head.removeChild(s); }catch(e){} }; } }, []); return null; }`,
		scopeClass, cssLiteral,
	)

	return fmt.Sprintf(
		"(() => {\n%s\n%s\n\n%s\n\n  return React.createElement(React.Fragment, null, React.createElement(__INJECT_CSS, null), React.createElement('div', { className: '%s' }, React.createElement(__APP__, null)));\n})()",
		requireShim, appCode, injector, scopeClass,
	)
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + r.Replace(s) + `"`
}
