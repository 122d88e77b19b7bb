package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/config"
	"github.com/cipherstudio/cipherstudio/internal/domain"
	"github.com/cipherstudio/cipherstudio/internal/domain/preview"
	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
	"github.com/cipherstudio/cipherstudio/internal/port/cache"
	"github.com/cipherstudio/cipherstudio/internal/port/database"
	"github.com/cipherstudio/cipherstudio/internal/port/messagequeue"
)

// maxInitialTabs caps how many editors open automatically when a session
// loads. The user can open more by hand.
const maxInitialTabs = 3

// placeholderContent seeds the index.js created inside a new folder, since
// the flat file map cannot represent an empty directory.
const placeholderContent = "// Folder created\n"

// session is the in-memory workspace state for one open project. All
// operations run under mu, which stands in for the single-threaded
// atomicity of the browser model.
type session struct {
	mu sync.Mutex

	projectID  string
	files      vfs.FileMap
	tree       *vfs.Tree
	view       *vfs.TreeView
	activeFile string
	openTabs   []string
	dirty      map[string]bool
	synth      *preview.Synthesizer

	autosaveOn     bool
	autosaveCancel context.CancelFunc
}

// WorkspaceState is the session snapshot returned to clients.
type WorkspaceState struct {
	ProjectID  string      `json:"project_id"`
	Files      vfs.FileMap `json:"files"`
	ActiveFile string      `json:"active_file"`
	OpenTabs   []string    `json:"open_tabs"`
	DirtyPaths []string    `json:"dirty_paths"`
	Revision   uint64      `json:"revision"`
	AutosaveOn bool        `json:"autosave_on"`
}

// TreeNode is the JSON projection of one explorer tree node.
type TreeNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Path     string     `json:"path"`
	Expanded bool       `json:"expanded,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

// WorkspaceService owns the live editing sessions: one per open project,
// holding the canonical file map, explorer tree, tabs, dirty flags and the
// preview synthesizer. Mutations persist a draft snapshot to the cache and
// announce themselves on the message queue.
type WorkspaceService struct {
	store database.Store
	queue messagequeue.Queue
	cache cache.Cache
	cfg   config.Autosave

	mu       sync.Mutex
	sessions map[string]*session
}

// NewWorkspaceService creates a new WorkspaceService. queue and cache may be
// nil; the corresponding side effects are skipped.
func NewWorkspaceService(store database.Store, queue messagequeue.Queue, c cache.Cache, cfg config.Autosave) *WorkspaceService {
	return &WorkspaceService{
		store:    store,
		queue:    queue,
		cache:    c,
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// Open loads the project and starts (or returns) its editing session.
// The first files in path order become the initial open tabs.
func (s *WorkspaceService) Open(ctx context.Context, projectID string) (*WorkspaceState, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[projectID]; ok {
		s.mu.Unlock()
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return s.snapshot(sess), nil
	}
	s.mu.Unlock()

	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	files := p.Files.Clone()
	if files == nil {
		files = vfs.FileMap{}
	}

	tree := vfs.NewTree()
	tree.BuildFromFiles(files)

	paths := files.Paths()
	tabs := paths
	if len(tabs) > maxInitialTabs {
		tabs = tabs[:maxInitialTabs]
	}
	active := ""
	if len(tabs) > 0 {
		active = tabs[0]
	}

	sess := &session{
		projectID:  projectID,
		files:      files,
		tree:       tree,
		view:       vfs.NewTreeView(tree),
		activeFile: active,
		openTabs:   append([]string(nil), tabs...),
		dirty:      make(map[string]bool),
		synth:      preview.New(),
		autosaveOn: s.cfg.Enabled && p.Settings.AutoSave,
	}

	s.mu.Lock()
	if existing, ok := s.sessions[projectID]; ok {
		// Lost the race; use the session the other caller built.
		s.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return s.snapshot(existing), nil
	}
	s.sessions[projectID] = sess
	s.mu.Unlock()

	if sess.autosaveOn {
		s.startAutosave(sess)
	}

	slog.Info("workspace opened", "project_id", projectID, "files", len(files))
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshot(sess), nil
}

// Close tears down the session for a project, stopping its autosave loop.
// Unsaved changes stay in the draft cache.
func (s *WorkspaceService) Close(projectID string) {
	s.mu.Lock()
	sess, ok := s.sessions[projectID]
	if ok {
		delete(s.sessions, projectID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	sess.mu.Lock()
	if sess.autosaveCancel != nil {
		sess.autosaveCancel()
		sess.autosaveCancel = nil
	}
	sess.mu.Unlock()
	slog.Info("workspace closed", "project_id", projectID)
}

// CloseAll tears down every open session. Used during shutdown.
func (s *WorkspaceService) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Close(id)
	}
}

// State returns the current session snapshot.
func (s *WorkspaceService) State(projectID string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshot(sess), nil
}

// Tree returns the explorer tree with folders first, expand state included.
func (s *WorkspaceService) Tree(projectID string) (*TreeNode, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	root := projectNode(sess.tree.Root)
	return &root, nil
}

// ToggleFolder flips a folder's expand state. Returns the new tree revision.
func (s *WorkspaceService) ToggleFolder(projectID, path string) (uint64, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.view.Toggle(path) {
		return 0, fmt.Errorf("%w: folder %s", domain.ErrNotFound, path)
	}
	return sess.view.Revision(), nil
}

// AddFile creates a file and opens it. A freshly created file counts
// as saved, so it starts clean.
func (s *WorkspaceService) AddFile(ctx context.Context, projectID, path, content string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(path)
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path must start with /", domain.ErrValidation)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, exists := sess.files[path]; exists {
		return nil, fmt.Errorf("%w: %s already exists", domain.ErrConflict, path)
	}

	next := sess.files.Clone()
	next[path] = vfs.File{Code: content}
	sess.files = next
	sess.tree.BuildFromFiles(sess.files)
	sess.view.Refresh()

	sess.activeFile = path
	sess.openTabs = appendTab(sess.openTabs, path)
	delete(sess.dirty, path)

	s.afterMutation(ctx, sess, messagequeue.FileChangedPayload{
		ProjectID: projectID,
		Action:    messagequeue.ActionAdd,
		Path:      path,
	})
	return s.snapshot(sess), nil
}

// AddFolder creates a folder by seeding a placeholder index.js inside it.
func (s *WorkspaceService) AddFolder(ctx context.Context, projectID, path string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(strings.TrimSuffix(path, "/"))
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path must start with /", domain.ErrValidation)
	}
	placeholder := path + "/index.js"

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, exists := sess.files[placeholder]; exists {
		return nil, fmt.Errorf("%w: %s already exists", domain.ErrConflict, path)
	}

	next := sess.files.Clone()
	next[placeholder] = vfs.File{Code: placeholderContent}
	sess.files = next
	sess.tree.BuildFromFiles(sess.files)
	sess.view.Refresh()
	delete(sess.dirty, placeholder)

	s.afterMutation(ctx, sess, messagequeue.FileChangedPayload{
		ProjectID: projectID,
		Action:    messagequeue.ActionFolder,
		Path:      path,
	})
	return s.snapshot(sess), nil
}

// DeleteFile removes a file, or a whole subtree when the path looks like a
// folder. Tabs and dirty flags for removed paths are dropped; the active
// file falls back to the first remaining tab, or the first remaining file
// when no tabs are left.
func (s *WorkspaceService) DeleteFile(ctx context.Context, projectID, path string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(path)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	removed := s.pathsUnder(sess, path)
	if len(removed) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}

	next := sess.files.Clone()
	for _, p := range removed {
		delete(next, p)
		delete(sess.dirty, p)
		sess.openTabs = removeTab(sess.openTabs, p)
	}
	sess.files = next
	sess.tree.BuildFromFiles(sess.files)
	sess.view.Refresh()

	if !containsTab(sess.openTabs, sess.activeFile) {
		sess.activeFile = ""
		if len(sess.openTabs) > 0 {
			sess.activeFile = sess.openTabs[0]
		} else if paths := sess.files.Paths(); len(paths) > 0 {
			sess.activeFile = paths[0]
		}
	}

	s.afterMutation(ctx, sess, messagequeue.FileChangedPayload{
		ProjectID: projectID,
		Action:    messagequeue.ActionDelete,
		Path:      path,
	})
	return s.snapshot(sess), nil
}

// RenameFile renames a file, or a folder and everything under it. The
// operation is rejected when the destination already exists.
func (s *WorkspaceService) RenameFile(ctx context.Context, projectID, oldPath, newName string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	oldPath = vfs.NormalizePath(oldPath)
	if newName == "" || strings.Contains(newName, "/") {
		return nil, fmt.Errorf("%w: invalid name", domain.ErrValidation)
	}
	newPath := vfs.RenamePath(oldPath, newName)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Renaming to the current name is a no-op.
	if newPath == oldPath {
		return s.snapshot(sess), nil
	}

	moved := s.pathsUnder(sess, oldPath)
	if len(moved) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, oldPath)
	}
	if len(s.pathsUnder(sess, newPath)) > 0 {
		return nil, fmt.Errorf("%w: %s already exists", domain.ErrConflict, newPath)
	}

	next := sess.files.Clone()
	for _, p := range moved {
		dst := newPath + strings.TrimPrefix(p, oldPath)
		next[dst] = next[p]
		delete(next, p)

		if sess.dirty[p] {
			delete(sess.dirty, p)
			sess.dirty[dst] = true
		}
		sess.openTabs = replaceTab(sess.openTabs, p, dst)
		if sess.activeFile == p {
			sess.activeFile = dst
		}
	}
	sess.files = next
	sess.tree.BuildFromFiles(sess.files)
	sess.view.Refresh()

	s.afterMutation(ctx, sess, messagequeue.FileChangedPayload{
		ProjectID: projectID,
		Action:    messagequeue.ActionRename,
		Path:      oldPath,
		NewPath:   newPath,
	})
	return s.snapshot(sess), nil
}

// UpdateCode replaces a file's content and marks it dirty.
func (s *WorkspaceService) UpdateCode(ctx context.Context, projectID, path, code string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(path)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, ok := sess.files[path]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}

	next := sess.files.Clone()
	next[path] = vfs.File{Code: code}
	sess.files = next
	sess.tree.BuildFromFiles(sess.files)
	sess.view.Refresh()
	sess.dirty[path] = true

	s.writeDraft(ctx, sess)
	s.publish(ctx, messagequeue.SubjectCodeUpdated, messagequeue.CodeUpdatedPayload{
		ProjectID: projectID,
		Path:      path,
		Size:      len(code),
		Dirty:     true,
	})
	return s.snapshot(sess), nil
}

// OpenFile makes a file the active editor, adding a tab when needed.
func (s *WorkspaceService) OpenFile(ctx context.Context, projectID, path string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(path)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, ok := sess.files[path]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}

	sess.activeFile = path
	sess.openTabs = appendTab(sess.openTabs, path)

	s.publish(ctx, messagequeue.SubjectTabsChanged, messagequeue.TabsChangedPayload{
		ProjectID:  projectID,
		ActiveFile: sess.activeFile,
		OpenTabs:   append([]string(nil), sess.openTabs...),
	})
	return s.snapshot(sess), nil
}

// CloseTab closes an editor tab. The active file moves to the first
// remaining tab when the active one is closed.
func (s *WorkspaceService) CloseTab(ctx context.Context, projectID, path string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}
	path = vfs.NormalizePath(path)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.openTabs = removeTab(sess.openTabs, path)
	if sess.activeFile == path {
		sess.activeFile = ""
		if len(sess.openTabs) > 0 {
			sess.activeFile = sess.openTabs[0]
		}
	}

	s.publish(ctx, messagequeue.SubjectTabsChanged, messagequeue.TabsChangedPayload{
		ProjectID:  projectID,
		ActiveFile: sess.activeFile,
		OpenTabs:   append([]string(nil), sess.openTabs...),
	})
	return s.snapshot(sess), nil
}

// Save persists the full file map to the database and clears dirty flags.
func (s *WorkspaceService) Save(ctx context.Context, projectID string) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := s.store.UpdateProjectFiles(ctx, projectID, sess.files); err != nil {
		return nil, fmt.Errorf("persist files: %w", err)
	}
	sess.dirty = make(map[string]bool)

	s.publish(ctx, messagequeue.SubjectProjectSaved, messagequeue.ProjectSavedPayload{
		ProjectID: projectID,
		FileCount: len(sess.files),
	})
	return s.snapshot(sess), nil
}

// Preview synthesizes the live preview for the session's current files.
func (s *WorkspaceService) Preview(ctx context.Context, projectID string) (*preview.Result, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	result := sess.synth.Synthesize(sess.files)
	sess.mu.Unlock()

	s.publish(ctx, messagequeue.SubjectPreviewReady, messagequeue.PreviewReadyPayload{
		ProjectID:  projectID,
		Kind:       string(result.Kind),
		ScopeClass: result.ScopeClass,
	})
	return &result, nil
}

// SetAutosave enables or disables the session's autosave loop.
func (s *WorkspaceService) SetAutosave(projectID string, enabled bool) (*WorkspaceState, error) {
	sess, err := s.session(projectID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch {
	case enabled && !sess.autosaveOn:
		sess.autosaveOn = true
		s.startAutosaveLocked(sess)
	case !enabled && sess.autosaveOn:
		sess.autosaveOn = false
		if sess.autosaveCancel != nil {
			sess.autosaveCancel()
			sess.autosaveCancel = nil
		}
	}
	return s.snapshot(sess), nil
}

// --- internals ---

func (s *WorkspaceService) session(projectID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: no open workspace for project %s", domain.ErrNotFound, projectID)
	}
	return sess, nil
}

// pathsUnder returns the given path plus, when it denotes a folder, every
// path beneath it. Caller holds sess.mu.
func (s *WorkspaceService) pathsUnder(sess *session, path string) []string {
	var out []string
	if _, ok := sess.files[path]; ok {
		out = append(out, path)
	}
	if vfs.IsFolder(path) {
		for _, p := range sess.files.Paths() {
			if p != path && vfs.PathStartsWith(p, path) {
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// afterMutation runs the shared tail of every tree mutation: draft cache
// write and event publication. Caller holds sess.mu.
func (s *WorkspaceService) afterMutation(ctx context.Context, sess *session, payload messagequeue.FileChangedPayload) {
	s.writeDraft(ctx, sess)
	s.publish(ctx, messagequeue.SubjectFileChanged, payload)
}

func (s *WorkspaceService) snapshot(sess *session) *WorkspaceState {
	dirty := make([]string, 0, len(sess.dirty))
	for p := range sess.dirty {
		dirty = append(dirty, p)
	}
	sort.Strings(dirty)

	return &WorkspaceState{
		ProjectID:  sess.projectID,
		Files:      sess.files.Clone(),
		ActiveFile: sess.activeFile,
		OpenTabs:   append([]string(nil), sess.openTabs...),
		DirtyPaths: dirty,
		Revision:   sess.view.Revision(),
		AutosaveOn: sess.autosaveOn,
	}
}

func (s *WorkspaceService) writeDraft(ctx context.Context, sess *session) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(sess.files)
	if err != nil {
		slog.Error("marshal draft snapshot", "project_id", sess.projectID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, draftKey(sess.projectID), data, 0); err != nil {
		slog.Warn("write draft snapshot", "project_id", sess.projectID, "error", err)
	}
}

// Draft returns the cached unsaved file-map snapshot for a project, if any.
func (s *WorkspaceService) Draft(ctx context.Context, projectID string) (vfs.FileMap, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	data, ok, err := s.cache.Get(ctx, draftKey(projectID))
	if err != nil || !ok {
		return nil, false, err
	}
	return vfs.Normalize(data), true, nil
}

func draftKey(projectID string) string {
	return "draft:" + projectID
}

func (s *WorkspaceService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish event", "subject", subject, "error", err)
	}
}

func (s *WorkspaceService) startAutosave(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.startAutosaveLocked(sess)
}

// startAutosaveLocked starts the per-session flush loop. Caller holds sess.mu.
func (s *WorkspaceService) startAutosaveLocked(sess *session) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess.autosaveCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.autosaveTick(ctx, sess)
			}
		}
	}()
}

// autosaveTick flushes dirty files to the database, if there are any.
func (s *WorkspaceService) autosaveTick(ctx context.Context, sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.dirty) == 0 {
		return
	}

	dirty := make([]string, 0, len(sess.dirty))
	for p := range sess.dirty {
		dirty = append(dirty, p)
	}
	sort.Strings(dirty)

	if err := s.store.UpdateProjectFiles(ctx, sess.projectID, sess.files); err != nil {
		slog.Warn("autosave flush failed", "project_id", sess.projectID, "error", err)
		return
	}
	sess.dirty = make(map[string]bool)

	s.publish(ctx, messagequeue.SubjectAutosaveFlushed, messagequeue.AutosaveFlushedPayload{
		ProjectID:  sess.projectID,
		FlushedAt:  time.Now().UnixMilli(),
		DirtyPaths: dirty,
	})
}

// projectNode converts a tree node into its JSON projection, recursively,
// with explorer ordering applied.
func projectNode(n *vfs.Node) TreeNode {
	out := TreeNode{
		Name:     n.Name,
		Type:     string(n.Type),
		Path:     n.Path,
		Expanded: n.Expanded,
	}
	for _, c := range n.ChildrenSorted() {
		out.Children = append(out.Children, projectNode(c))
	}
	return out
}

// --- tab helpers ---

func appendTab(tabs []string, path string) []string {
	if containsTab(tabs, path) {
		return tabs
	}
	return append(tabs, path)
}

func removeTab(tabs []string, path string) []string {
	for i, t := range tabs {
		if t == path {
			return append(tabs[:i], tabs[i+1:]...)
		}
	}
	return tabs
}

func replaceTab(tabs []string, oldPath, newPath string) []string {
	for i, t := range tabs {
		if t == oldPath {
			tabs[i] = newPath
		}
	}
	return tabs
}

func containsTab(tabs []string, path string) bool {
	for _, t := range tabs {
		if t == path {
			return true
		}
	}
	return false
}
