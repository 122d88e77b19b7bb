// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/port/database"
	"github.com/cipherstudio/cipherstudio/internal/port/messagequeue"
)

// ProjectService handles project lifecycle and metadata.
type ProjectService struct {
	store database.Store
	queue messagequeue.Queue
}

// NewProjectService creates a new ProjectService. queue may be nil when
// event publication is not wanted (tests, CLI tools).
func NewProjectService(store database.Store, queue messagequeue.Queue) *ProjectService {
	return &ProjectService{store: store, queue: queue}
}

// List returns summaries of all projects owned by the given user,
// most recently updated first.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]project.Summary, error) {
	return s.store.ListProjects(ctx, ownerID)
}

// Get returns a project by ID, including its full file map.
func (s *ProjectService) Get(ctx context.Context, id string) (*project.Project, error) {
	return s.store.GetProject(ctx, id)
}

// GetBySlug returns a project by its URL slug.
func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (*project.Project, error) {
	return s.store.GetProjectBySlug(ctx, slug)
}

// Create validates the request and creates a new project. When the
// request carries no files, the project is seeded with the starter
// template for its framework. An empty slug is derived from the name.
func (s *ProjectService) Create(ctx context.Context, ownerID string, req *project.CreateRequest) (*project.Project, error) {
	if req.Slug == "" {
		req.Slug = project.Slugify(req.Name)
	}
	if err := project.ValidateCreateRequest(*req); err != nil {
		return nil, err
	}

	settings := project.Settings{
		Framework: project.FrameworkReact,
		AutoSave:  true,
	}
	if req.Settings != nil {
		settings = *req.Settings
	}

	files := req.Files
	if len(files) == 0 {
		files = project.StarterFiles(settings.Framework)
	}

	now := time.Now()
	p := &project.Project{
		ID:          uuid.NewString(),
		Slug:        req.Slug,
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Settings:    settings,
		Files:       files,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies partial updates to a project's metadata and settings.
func (s *ProjectService) Update(ctx context.Context, id string, req project.UpdateRequest) (*project.Project, error) {
	if err := project.ValidateUpdateRequest(req); err != nil {
		return nil, err
	}

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Settings != nil {
		p.Settings = *req.Settings
	}
	if req.Files != nil {
		p.Files = *req.Files
	}
	p.UpdatedAt = time.Now()

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project and announces the deletion so open
// workspace sessions can shut down.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, messagequeue.SubjectProjectDeleted, messagequeue.ProjectDeletedPayload{
		ProjectID: id,
	})
	return nil
}

func (s *ProjectService) publish(ctx context.Context, subject string, payload any) {
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
