package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/domain"
	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/domain/user"
	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
	"github.com/cipherstudio/cipherstudio/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for testing.
type mockStore struct {
	users         []user.User
	refreshTokens []user.RefreshToken
	revoked       map[string]time.Time
	apiKeys       []user.APIKey
	projects      []project.Project

	// Error hooks — set these to inject failures.
	listProjectsErr  error
	getProjectErr    error
	createProjectErr error
	updateProjectErr error
	deleteProjectErr error
	updateFilesErr   error
}

// --- Users ---

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	for i := range m.users {
		if m.users[i].Email == u.Email {
			return domain.ErrConflict
		}
	}
	m.users = append(m.users, *u)
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	for i := range m.users {
		if m.users[i].Email == email {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListUsers(_ context.Context) ([]user.User, error) {
	return m.users, nil
}

func (m *mockStore) UpdateUser(_ context.Context, u *user.User) error {
	for i := range m.users {
		if m.users[i].ID == u.ID {
			m.users[i] = *u
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteUser(_ context.Context, id string) error {
	for i := range m.users {
		if m.users[i].ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- Refresh tokens ---

func (m *mockStore) CreateRefreshToken(_ context.Context, rt *user.RefreshToken) error {
	m.refreshTokens = append(m.refreshTokens, *rt)
	return nil
}

func (m *mockStore) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*user.RefreshToken, error) {
	for i := range m.refreshTokens {
		if m.refreshTokens[i].TokenHash == tokenHash {
			rt := m.refreshTokens[i]
			return &rt, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) DeleteRefreshToken(_ context.Context, id string) error {
	for i := range m.refreshTokens {
		if m.refreshTokens[i].ID == id {
			m.refreshTokens = append(m.refreshTokens[:i], m.refreshTokens[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteRefreshTokensByUser(_ context.Context, userID string) error {
	kept := m.refreshTokens[:0]
	for _, rt := range m.refreshTokens {
		if rt.UserID != userID {
			kept = append(kept, rt)
		}
	}
	m.refreshTokens = kept
	return nil
}

func (m *mockStore) RotateRefreshToken(ctx context.Context, oldID string, newRT *user.RefreshToken) error {
	if err := m.DeleteRefreshToken(ctx, oldID); err != nil {
		return err
	}
	return m.CreateRefreshToken(ctx, newRT)
}

// --- Revoked tokens ---

func (m *mockStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[jti] = expiresAt
	return nil
}

func (m *mockStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *mockStore) PurgeExpiredTokens(_ context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for jti, exp := range m.revoked {
		if exp.Before(now) {
			delete(m.revoked, jti)
			n++
		}
	}
	return n, nil
}

// --- API keys ---

func (m *mockStore) CreateAPIKey(_ context.Context, key *user.APIKey) error {
	m.apiKeys = append(m.apiKeys, *key)
	return nil
}

func (m *mockStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*user.APIKey, error) {
	for i := range m.apiKeys {
		if m.apiKeys[i].KeyHash == keyHash {
			k := m.apiKeys[i]
			return &k, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListAPIKeysByUser(_ context.Context, userID string) ([]user.APIKey, error) {
	var out []user.APIKey
	for _, k := range m.apiKeys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteAPIKey(_ context.Context, id, userID string) error {
	for i := range m.apiKeys {
		if m.apiKeys[i].ID == id && m.apiKeys[i].UserID == userID {
			m.apiKeys = append(m.apiKeys[:i], m.apiKeys[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- Projects ---

func (m *mockStore) ListProjects(_ context.Context, ownerID string) ([]project.Summary, error) {
	if m.listProjectsErr != nil {
		return nil, m.listProjectsErr
	}
	var out []project.Summary
	for i := range m.projects {
		if m.projects[i].OwnerID == ownerID {
			out = append(out, m.projects[i].Summarize())
		}
	}
	return out, nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*project.Project, error) {
	if m.getProjectErr != nil {
		return nil, m.getProjectErr
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			p := m.projects[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetProjectBySlug(_ context.Context, slug string) (*project.Project, error) {
	for i := range m.projects {
		if m.projects[i].Slug == slug {
			p := m.projects[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateProject(_ context.Context, p *project.Project) error {
	if m.createProjectErr != nil {
		return m.createProjectErr
	}
	for i := range m.projects {
		if m.projects[i].Slug == p.Slug {
			return domain.ErrConflict
		}
	}
	m.projects = append(m.projects, *p)
	return nil
}

func (m *mockStore) UpdateProject(_ context.Context, p *project.Project) error {
	if m.updateProjectErr != nil {
		return m.updateProjectErr
	}
	for i := range m.projects {
		if m.projects[i].ID == p.ID {
			m.projects[i] = *p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) UpdateProjectFiles(_ context.Context, id string, files vfs.FileMap) error {
	if m.updateFilesErr != nil {
		return m.updateFilesErr
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects[i].Files = files.Clone()
			m.projects[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteProject(_ context.Context, id string) error {
	if m.deleteProjectErr != nil {
		return m.deleteProjectErr
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- ProjectService Tests ---

func TestProjectServiceList(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{
			{ID: "p1", OwnerID: "u1", Name: "Alpha"},
			{ID: "p2", OwnerID: "u1", Name: "Beta"},
			{ID: "p3", OwnerID: "u2", Name: "Other"},
		},
	}
	svc := NewProjectService(store, nil)

	got, err := svc.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(got))
	}
}

func TestProjectServiceListError(t *testing.T) {
	store := &mockStore{listProjectsErr: errors.New("db down")}
	svc := NewProjectService(store, nil)

	_, err := svc.List(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestProjectServiceGet(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{ID: "p1", Name: "Alpha"}},
	}
	svc := NewProjectService(store, nil)

	p, err := svc.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Alpha" {
		t.Fatalf("expected 'Alpha', got %q", p.Name)
	}
}

func TestProjectServiceGetNotFound(t *testing.T) {
	store := &mockStore{}
	svc := NewProjectService(store, nil)

	_, err := svc.Get(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectServiceCreateSeedsStarter(t *testing.T) {
	store := &mockStore{}
	svc := NewProjectService(store, nil)

	p, err := svc.Create(context.Background(), "u1", &project.CreateRequest{
		Name: "My New App",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Slug != "my-new-app" {
		t.Errorf("slug = %q, want my-new-app", p.Slug)
	}
	if p.OwnerID != "u1" {
		t.Errorf("owner = %q, want u1", p.OwnerID)
	}
	if p.Settings.Framework != project.FrameworkReact {
		t.Errorf("framework = %q, want react", p.Settings.Framework)
	}
	if _, ok := p.Files["/src/App.jsx"]; !ok {
		t.Error("starter files missing /src/App.jsx")
	}
	if len(store.projects) != 1 {
		t.Fatalf("expected 1 project in store, got %d", len(store.projects))
	}
}

func TestProjectServiceCreateKeepsProvidedFiles(t *testing.T) {
	store := &mockStore{}
	svc := NewProjectService(store, nil)

	files := vfs.FileMap{"/main.js": {Code: "console.log(1)"}}
	p, err := svc.Create(context.Background(), "u1", &project.CreateRequest{
		Name:  "Imported",
		Slug:  "imported",
		Files: files,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Files) != 1 {
		t.Fatalf("expected provided files untouched, got %d entries", len(p.Files))
	}
}

func TestProjectServiceCreateInvalidSlug(t *testing.T) {
	store := &mockStore{}
	svc := NewProjectService(store, nil)

	_, err := svc.Create(context.Background(), "u1", &project.CreateRequest{
		Name: "App",
		Slug: "Bad Slug!",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestProjectServiceCreateSlugConflict(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{ID: "p1", Slug: "taken", Name: "First"}},
	}
	svc := NewProjectService(store, nil)

	_, err := svc.Create(context.Background(), "u1", &project.CreateRequest{
		Name: "Second",
		Slug: "taken",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestProjectServiceUpdate(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{
			ID:       "p1",
			Slug:     "alpha",
			Name:     "Alpha",
			Settings: project.Settings{Framework: project.FrameworkReact, AutoSave: true},
		}},
	}
	svc := NewProjectService(store, nil)

	name := "Alpha Two"
	settings := project.Settings{Framework: project.FrameworkReact, AutoSave: false}
	p, err := svc.Update(context.Background(), "p1", project.UpdateRequest{
		Name:     &name,
		Settings: &settings,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Alpha Two" {
		t.Errorf("name = %q, want Alpha Two", p.Name)
	}
	if p.Settings.AutoSave {
		t.Error("autosave should be disabled after update")
	}
}

func TestProjectServiceDelete(t *testing.T) {
	store := &mockStore{
		projects: []project.Project{{ID: "p1", Name: "Alpha"}},
	}
	svc := NewProjectService(store, nil)

	if err := svc.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.projects) != 0 {
		t.Fatalf("expected 0 projects after delete, got %d", len(store.projects))
	}
}

func TestProjectServiceDeleteNotFound(t *testing.T) {
	store := &mockStore{}
	svc := NewProjectService(store, nil)

	err := svc.Delete(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
