package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cipherstudio/cipherstudio/internal/domain/user"
	"github.com/cipherstudio/cipherstudio/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"cipherstudio","version":"` + h.Version + `"}`))
		})

		// Auth
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.GetCurrentUser)
		r.Post("/auth/change-password", h.ChangePassword)
		r.Get("/auth/settings", h.GetUserSettings)
		r.Put("/auth/settings", h.UpdateUserSettings)
		r.Post("/auth/api-keys", h.CreateAPIKeyHandler)
		r.Get("/auth/api-keys", h.ListAPIKeysHandler)
		r.Delete("/auth/api-keys/{id}", h.DeleteAPIKeyHandler)

		// User management (admin only)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(user.RoleAdmin))
			r.Get("/", h.ListUsersHandler)
			r.Post("/", h.CreateUserHandler)
			r.Put("/{id}", h.UpdateUserHandler)
			r.Delete("/{id}", h.DeleteUserHandler)
		})

		// Projects
		r.With(middleware.RequireScope(user.ScopeProjectsRead)).
			Get("/projects", h.ListProjects)
		r.With(middleware.RequireScope(user.ScopeProjectsWrite)).
			Post("/projects", h.CreateProject)
		r.With(middleware.RequireScope(user.ScopeProjectsRead)).
			Get("/projects/{id}", handleGet(h.Projects.Get, "project not found"))
		r.With(middleware.RequireScope(user.ScopeProjectsRead)).
			Get("/projects/slug/{slug}", h.GetProjectBySlug)
		r.With(middleware.RequireScope(user.ScopeProjectsWrite)).
			Put("/projects/{id}", handleUpdate(maxRequestBodySize, h.Projects.Update, "project not found"))
		r.With(middleware.RequireScope(user.ScopeProjectsWrite)).
			Delete("/projects/{id}", h.DeleteProject)

		// Workspace sessions (nested under projects)
		r.Route("/projects/{id}/workspace", func(r chi.Router) {
			read := middleware.RequireScope(user.ScopeWorkspaceRead)
			write := middleware.RequireScope(user.ScopeWorkspaceWrite)

			r.With(write).Post("/open", h.OpenWorkspace)
			r.With(write).Post("/close", h.CloseWorkspace)
			r.With(read).Get("/state", h.WorkspaceState)
			r.With(read).Get("/tree", h.WorkspaceTree)
			r.With(read).Get("/draft", h.WorkspaceDraft)
			r.With(write).Post("/tree/toggle", h.ToggleFolder)

			r.With(write).Post("/files", h.AddFile)
			r.With(write).Post("/folders", h.AddFolder)
			r.With(write).Post("/files/rename", h.RenameFile)
			r.With(write).Post("/files/delete", h.DeleteFile)
			r.With(write).Put("/code", h.UpdateCode)

			r.With(write).Post("/tabs/open", h.OpenFile)
			r.With(write).Post("/tabs/close", h.CloseTab)

			r.With(write).Post("/save", h.SaveWorkspace)
			r.With(write).Put("/autosave", h.SetAutosave)

			r.With(middleware.RequireScope(user.ScopePreviewRead)).
				Get("/preview", h.PreviewWorkspace)
		})

		// Diagnostics
		r.Get("/ws/connections", h.WSConnectionCount)
	})

	// WebSocket endpoint for live workspace events.
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	// Health checks (outside the API prefix, no auth)
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Health)
}
