package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cipherstudio/cipherstudio/internal/domain"
	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Projects ---

func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]project.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, slug, owner_id, name, description, settings,
		        (SELECT count(*) FROM jsonb_object_keys(files)) AS file_count,
		        created_at, updated_at
		 FROM projects WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Summary
	for rows.Next() {
		var p project.Summary
		var settings []byte
		if err := rows.Scan(&p.ID, &p.Slug, &p.OwnerID, &p.Name, &p.Description, &settings, &p.FileCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project summary: %w", err)
		}
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return nil, fmt.Errorf("decode project settings: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, slug, owner_id, name, description, settings, files, created_at, updated_at
		 FROM projects WHERE id = $1`, id)
	return scanProject(row, "get project "+id)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, slug, owner_id, name, description, settings, files, created_at, updated_at
		 FROM projects WHERE slug = $1`, slug)
	return scanProject(row, "get project by slug "+slug)
}

func (s *Store) CreateProject(ctx context.Context, p *project.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encode project settings: %w", err)
	}
	files, err := json.Marshal(p.Files)
	if err != nil {
		return fmt.Errorf("encode project files: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (id, slug, owner_id, name, description, settings, files, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Slug, p.OwnerID, p.Name, p.Description, settings, files, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create project slug %s: %w", p.Slug, domain.ErrConflict)
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	p.UpdatedAt = time.Now().UTC()

	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("encode project settings: %w", err)
	}
	files, err := json.Marshal(p.Files)
	if err != nil {
		return fmt.Errorf("encode project files: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, settings = $4, files = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.Name, p.Description, settings, files, p.UpdatedAt,
	)
	return execExpectOne(tag, err, "update project %s", p.ID)
}

// UpdateProjectFiles replaces only the file map. Used by save and autosave
// so concurrent metadata edits are not clobbered.
func (s *Store) UpdateProjectFiles(ctx context.Context, id string, files vfs.FileMap) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode project files: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET files = $2, updated_at = $3 WHERE id = $1`,
		id, data, time.Now().UTC(),
	)
	return execExpectOne(tag, err, "update project files %s", id)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete project %s", id)
}

func scanProject(row scannable, opName string) (*project.Project, error) {
	var p project.Project
	var settings, files []byte
	err := row.Scan(&p.ID, &p.Slug, &p.OwnerID, &p.Name, &p.Description, &settings, &files, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", opName, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", opName, err)
	}
	if err := json.Unmarshal(settings, &p.Settings); err != nil {
		return nil, fmt.Errorf("decode project settings: %w", err)
	}
	if err := json.Unmarshal(files, &p.Files); err != nil {
		return nil, fmt.Errorf("decode project files: %w", err)
	}
	return &p, nil
}
