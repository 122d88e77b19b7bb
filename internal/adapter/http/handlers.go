package http

import (
	"net/http"

	"github.com/cipherstudio/cipherstudio/internal/adapter/otel"
	"github.com/cipherstudio/cipherstudio/internal/adapter/ws"
	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/middleware"
	"github.com/cipherstudio/cipherstudio/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Projects  *service.ProjectService
	Workspace *service.WorkspaceService
	Auth      *service.AuthService
	Hub       *ws.Hub
	Metrics   *otel.Metrics

	Version string
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	projects, err := h.Projects.List(r.Context(), u.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if projects == nil {
		projects = []project.Summary{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handlers) GetProjectBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.Projects.GetBySlug(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	req, ok := readJSON[project.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	p, err := h.Projects.Create(r.Context(), u.ID, &req)
	if err != nil {
		writeDomainError(w, err, "project creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	// A deleted project cannot keep a live editing session.
	h.Workspace.Close(id)
	if err := h.Projects.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
