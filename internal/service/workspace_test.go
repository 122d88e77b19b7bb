package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/config"
	"github.com/cipherstudio/cipherstudio/internal/domain"
	"github.com/cipherstudio/cipherstudio/internal/domain/preview"
	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

func newTestWorkspace(t *testing.T, files vfs.FileMap) (*WorkspaceService, *mockStore) {
	t.Helper()
	store := &mockStore{
		projects: []project.Project{{
			ID:       "p1",
			Slug:     "demo",
			OwnerID:  "u1",
			Name:     "Demo",
			Settings: project.Settings{Framework: project.FrameworkReact, AutoSave: false},
			Files:    files,
		}},
	}
	svc := NewWorkspaceService(store, nil, nil, config.Autosave{Enabled: false, Interval: 5 * time.Second})
	t.Cleanup(svc.CloseAll)
	return svc, store
}

func starter() vfs.FileMap {
	return vfs.FileMap{
		"/index.html":    {Code: "<html></html>"},
		"/src/App.jsx":   {Code: "export default function App() { return null }"},
		"/src/index.css": {Code: "body { margin: 0 }"},
		"/src/main.jsx":  {Code: "import App from './App.jsx'"},
	}
}

func TestWorkspaceOpenInitialTabs(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())

	state, err := svc.Open(context.Background(), "p1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// First three paths in sorted order become tabs; the first is active.
	wantTabs := []string{"/index.html", "/src/App.jsx", "/src/index.css"}
	if len(state.OpenTabs) != len(wantTabs) {
		t.Fatalf("got %d tabs, want %d", len(state.OpenTabs), len(wantTabs))
	}
	for i, want := range wantTabs {
		if state.OpenTabs[i] != want {
			t.Errorf("tab[%d] = %q, want %q", i, state.OpenTabs[i], want)
		}
	}
	if state.ActiveFile != "/index.html" {
		t.Errorf("active = %q, want /index.html", state.ActiveFile)
	}
	if len(state.DirtyPaths) != 0 {
		t.Errorf("fresh session should have no dirty files, got %v", state.DirtyPaths)
	}
}

func TestWorkspaceOpenUnknownProject(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())

	_, err := svc.Open(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspaceAddFile(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.AddFile(ctx, "p1", "/src/util.js", "export const x = 1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := state.Files["/src/util.js"]; !ok {
		t.Fatal("file missing from map")
	}
	if state.ActiveFile != "/src/util.js" {
		t.Errorf("active = %q, want the new file", state.ActiveFile)
	}
	// A freshly created file counts as saved.
	if len(state.DirtyPaths) != 0 {
		t.Errorf("dirty = %v, want none for a freshly added file", state.DirtyPaths)
	}

	// Duplicate path is rejected.
	if _, err := svc.AddFile(ctx, "p1", "/src/util.js", ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestWorkspaceAddFolder(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.AddFolder(ctx, "p1", "/src/components")
	if err != nil {
		t.Fatalf("add folder: %v", err)
	}
	f, ok := state.Files["/src/components/index.js"]
	if !ok {
		t.Fatal("placeholder index.js missing")
	}
	if f.Code != placeholderContent {
		t.Errorf("placeholder content = %q", f.Code)
	}
	if len(state.DirtyPaths) != 0 {
		t.Errorf("dirty = %v, want none for a fresh placeholder", state.DirtyPaths)
	}
}

func TestWorkspaceDeleteFolderCascades(t *testing.T) {
	files := starter()
	files["/src/components/Button.jsx"] = vfs.File{Code: "export default () => null"}
	files["/src/components/Card.jsx"] = vfs.File{Code: "export default () => null"}
	svc, _ := newTestWorkspace(t, files)
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.DeleteFile(ctx, "p1", "/src/components")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	for path := range state.Files {
		if path == "/src/components/Button.jsx" || path == "/src/components/Card.jsx" {
			t.Errorf("%s should have been cascade-deleted", path)
		}
	}
}

func TestWorkspaceDeleteActiveFileFallsBack(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Active file is /index.html after open; delete it.
	state, err := svc.DeleteFile(ctx, "p1", "/index.html")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if state.ActiveFile != "/src/App.jsx" {
		t.Errorf("active = %q, want fallback to first remaining tab", state.ActiveFile)
	}
}

func TestWorkspaceDeleteAllTabsFallsBackToRemainingFile(t *testing.T) {
	// Every open tab lives under /a; /z.js exists but is never a tab.
	files := vfs.FileMap{
		"/a/one.js":   {Code: "1"},
		"/a/three.js": {Code: "3"},
		"/a/two.js":   {Code: "2"},
		"/z.js":       {Code: "z"},
	}
	svc, _ := newTestWorkspace(t, files)
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.DeleteFile(ctx, "p1", "/a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(state.OpenTabs) != 0 {
		t.Fatalf("tabs = %v, want none after deleting the folder", state.OpenTabs)
	}
	if state.ActiveFile != "/z.js" {
		t.Errorf("active = %q, want first remaining file /z.js", state.ActiveFile)
	}
}

func TestWorkspaceRenameSameNameIsNoop(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.RenameFile(ctx, "p1", "/src/main.jsx", "main.jsx")
	if err != nil {
		t.Fatalf("rename to same name: %v", err)
	}
	if _, ok := state.Files["/src/main.jsx"]; !ok {
		t.Fatal("file should be untouched")
	}
	if len(state.DirtyPaths) != 0 {
		t.Errorf("dirty = %v, want unchanged state", state.DirtyPaths)
	}
}

func TestWorkspaceRenameCollision(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err := svc.RenameFile(ctx, "p1", "/src/main.jsx", "App.jsx")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestWorkspaceRenameFolderCascades(t *testing.T) {
	files := starter()
	files["/src/components/Button.jsx"] = vfs.File{Code: "b"}
	files["/src/components/Card.jsx"] = vfs.File{Code: "c"}
	svc, _ := newTestWorkspace(t, files)
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.RenameFile(ctx, "p1", "/src/components", "widgets")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok := state.Files["/src/widgets/Button.jsx"]; !ok {
		t.Error("child Button.jsx not moved")
	}
	if _, ok := state.Files["/src/widgets/Card.jsx"]; !ok {
		t.Error("child Card.jsx not moved")
	}
	if _, ok := state.Files["/src/components/Button.jsx"]; ok {
		t.Error("old child path still present")
	}
}

func TestWorkspaceRenameUpdatesTabsAndActive(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.OpenFile(ctx, "p1", "/src/main.jsx"); err != nil {
		t.Fatalf("open file: %v", err)
	}

	state, err := svc.RenameFile(ctx, "p1", "/src/main.jsx", "bootstrap.jsx")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if state.ActiveFile != "/src/bootstrap.jsx" {
		t.Errorf("active = %q, want the renamed path", state.ActiveFile)
	}
	if !containsTab(state.OpenTabs, "/src/bootstrap.jsx") {
		t.Error("renamed path missing from tabs")
	}
	if containsTab(state.OpenTabs, "/src/main.jsx") {
		t.Error("old path still in tabs")
	}
}

func TestWorkspaceUpdateCodeMarksDirtyAndSaveClears(t *testing.T) {
	svc, store := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.UpdateCode(ctx, "p1", "/src/App.jsx", "export default function App() { return <p/> }")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(state.DirtyPaths) != 1 || state.DirtyPaths[0] != "/src/App.jsx" {
		t.Fatalf("dirty = %v", state.DirtyPaths)
	}

	state, err = svc.Save(ctx, "p1")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(state.DirtyPaths) != 0 {
		t.Errorf("dirty after save = %v, want empty", state.DirtyPaths)
	}

	p, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got := p.Files["/src/App.jsx"].Code; got != "export default function App() { return <p/> }" {
		t.Errorf("persisted code = %q", got)
	}
}

func TestWorkspaceUpdateCodeUnknownPath(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err := svc.UpdateCode(ctx, "p1", "/nope.js", "x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspaceTreeShape(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	root, err := svc.Tree("p1")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if root.Path != "/" {
		t.Fatalf("root path = %q", root.Path)
	}
	// Folders sort before files: src before index.html.
	if len(root.Children) != 2 {
		t.Fatalf("got %d root children, want 2", len(root.Children))
	}
	if root.Children[0].Name != "src" || root.Children[0].Type != "folder" {
		t.Errorf("first child = %s (%s), want src folder", root.Children[0].Name, root.Children[0].Type)
	}
	if root.Children[1].Name != "index.html" {
		t.Errorf("second child = %s, want index.html", root.Children[1].Name)
	}
}

func TestWorkspaceToggleFolder(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	rev1, err := svc.ToggleFolder("p1", "/src")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	rev2, err := svc.ToggleFolder("p1", "/src")
	if err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if rev2 <= rev1 {
		t.Errorf("revision did not advance: %d then %d", rev1, rev2)
	}

	if _, err := svc.ToggleFolder("p1", "/nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown folder, got %v", err)
	}
}

func TestWorkspacePreview(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	result, err := svc.Preview(ctx, "p1")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if result.Kind != preview.KindOK {
		t.Fatalf("kind = %q, want ok", result.Kind)
	}
	if result.Source == "" {
		t.Error("empty synthesized source")
	}
}

func TestWorkspaceAutosaveFlushes(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{
			ID:       "p1",
			Slug:     "demo",
			OwnerID:  "u1",
			Name:     "Demo",
			Settings: project.Settings{Framework: project.FrameworkReact, AutoSave: true},
			Files:    starter(),
		}},
	}
	svc := NewWorkspaceService(store, nil, nil, config.Autosave{Enabled: true, Interval: 20 * time.Millisecond})
	t.Cleanup(svc.CloseAll)

	ctx := context.Background()
	state, err := svc.Open(ctx, "p1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !state.AutosaveOn {
		t.Fatal("autosave should be on for this project")
	}

	if _, err := svc.UpdateCode(ctx, "p1", "/src/App.jsx", "edited"); err != nil {
		t.Fatalf("update: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.State("p1")
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if len(st.DirtyPaths) == 0 {
			p, _ := store.GetProject(ctx, "p1")
			if p.Files["/src/App.jsx"].Code != "edited" {
				t.Fatal("dirty cleared but edit not persisted")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("autosave never flushed the dirty file")
}

func TestWorkspaceSetAutosave(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	state, err := svc.SetAutosave("p1", true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !state.AutosaveOn {
		t.Error("autosave should be enabled")
	}

	state, err = svc.SetAutosave("p1", false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if state.AutosaveOn {
		t.Error("autosave should be disabled")
	}
}

func TestWorkspaceCloseStopsSession(t *testing.T) {
	svc, _ := newTestWorkspace(t, starter())
	ctx := context.Background()
	if _, err := svc.Open(ctx, "p1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	svc.Close("p1")
	if _, err := svc.State("p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after close, got %v", err)
	}
}
