package http

import (
	"net/http"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/adapter/otel"
)

// Workspace request bodies. Paths are absolute within the project file tree
// (always "/" prefixed); names are single path segments.
type addFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type addFolderRequest struct {
	Path string `json:"path"`
}

type renameFileRequest struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type updateCodeRequest struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

type autosaveRequest struct {
	Enabled bool `json:"enabled"`
}

// OpenWorkspace loads a project into an in-memory editing session.
func (h *Handlers) OpenWorkspace(w http.ResponseWriter, r *http.Request) {
	state, err := h.Workspace.Open(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CloseWorkspace tears down the session. Unsaved edits are discarded;
// drafts survive in the cache until the next Open.
func (h *Handlers) CloseWorkspace(w http.ResponseWriter, r *http.Request) {
	h.Workspace.Close(urlParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) WorkspaceState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Workspace.State(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) WorkspaceTree(w http.ResponseWriter, r *http.Request) {
	root, err := h.Workspace.Tree(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (h *Handlers) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	revision, err := h.Workspace.ToggleFolder(urlParam(r, "id"), req.Path)
	if err != nil {
		writeDomainError(w, err, "folder not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"revision": revision})
}

func (h *Handlers) AddFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[addFileRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	ctx, span := otel.StartWorkspaceSpan(r.Context(), urlParam(r, "id"), "add", req.Path)
	defer span.End()

	state, err := h.Workspace.AddFile(ctx, urlParam(r, "id"), req.Path, req.Content)
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	if h.Metrics != nil {
		h.Metrics.FilesChanged.Add(ctx, 1)
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *Handlers) AddFolder(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[addFolderRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	ctx, span := otel.StartWorkspaceSpan(r.Context(), urlParam(r, "id"), "folder", req.Path)
	defer span.End()

	state, err := h.Workspace.AddFolder(ctx, urlParam(r, "id"), req.Path)
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	if h.Metrics != nil {
		h.Metrics.FilesChanged.Add(ctx, 1)
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	ctx, span := otel.StartWorkspaceSpan(r.Context(), urlParam(r, "id"), "delete", req.Path)
	defer span.End()

	state, err := h.Workspace.DeleteFile(ctx, urlParam(r, "id"), req.Path)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	if h.Metrics != nil {
		h.Metrics.FilesChanged.Add(ctx, 1)
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) RenameFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[renameFileRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") || !requireField(w, req.NewName, "new_name") {
		return
	}
	if err := sanitizeName(req.NewName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, span := otel.StartWorkspaceSpan(r.Context(), urlParam(r, "id"), "rename", req.Path)
	defer span.End()

	state, err := h.Workspace.RenameFile(ctx, urlParam(r, "id"), req.Path, req.NewName)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	if h.Metrics != nil {
		h.Metrics.FilesChanged.Add(ctx, 1)
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) UpdateCode(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[updateCodeRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	ctx, span := otel.StartWorkspaceSpan(r.Context(), urlParam(r, "id"), "code", req.Path)
	defer span.End()

	state, err := h.Workspace.UpdateCode(ctx, urlParam(r, "id"), req.Path, req.Code)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	if h.Metrics != nil {
		h.Metrics.CodeUpdates.Add(ctx, 1)
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) OpenFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	state, err := h.Workspace.OpenFile(r.Context(), urlParam(r, "id"), req.Path)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) CloseTab(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	state, err := h.Workspace.CloseTab(r.Context(), urlParam(r, "id"), req.Path)
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SaveWorkspace persists the session file map to the project store and
// clears all dirty flags.
func (h *Handlers) SaveWorkspace(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := otel.StartSaveSpan(r.Context(), urlParam(r, "id"))
	defer span.End()

	state, err := h.Workspace.Save(ctx, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	otel.SetSpanFileCount(span, len(state.Files))
	if h.Metrics != nil {
		h.Metrics.ProjectSaves.Add(ctx, 1)
		h.Metrics.SaveLatency.Record(ctx, time.Since(start).Seconds())
	}
	writeJSON(w, http.StatusOK, state)
}

// PreviewWorkspace synthesizes a live-preview document from the current
// session files.
func (h *Handlers) PreviewWorkspace(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := otel.StartPreviewSpan(r.Context(), urlParam(r, "id"))
	defer span.End()

	result, err := h.Workspace.Preview(ctx, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	otel.SetSpanKind(span, string(result.Kind))
	if h.Metrics != nil {
		h.Metrics.Previews.Add(ctx, 1)
		h.Metrics.PreviewLatency.Record(ctx, time.Since(start).Seconds())
	}
	// ?format=js serves the synthesized program directly so the IDE's
	// preview frame can load it as a script.
	if r.URL.Query().Get("format") == "js" {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result.Source))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) SetAutosave(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[autosaveRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	state, err := h.Workspace.SetAutosave(urlParam(r, "id"), req.Enabled)
	if err != nil {
		writeDomainError(w, err, "workspace not open")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// WorkspaceDraft returns the cached unsaved file map for a project, if any.
func (h *Handlers) WorkspaceDraft(w http.ResponseWriter, r *http.Request) {
	files, found, err := h.Workspace.Draft(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no draft for project")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// WSConnectionCount reports the number of live WebSocket connections.
func (h *Handlers) WSConnectionCount(w http.ResponseWriter, _ *http.Request) {
	count := 0
	if h.Hub != nil {
		count = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, map[string]int{"connections": count})
}
