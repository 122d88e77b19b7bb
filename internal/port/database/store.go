// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/domain/project"
	"github.com/cipherstudio/cipherstudio/internal/domain/user"
	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

// Store is the port interface for database operations.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
	DeleteUser(ctx context.Context, id string) error

	// Refresh tokens
	CreateRefreshToken(ctx context.Context, rt *user.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*user.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, oldTokenHash string, newRT *user.RefreshToken) error

	// Revoked access tokens
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *user.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*user.APIKey, error)
	ListAPIKeysByUser(ctx context.Context, userID string) ([]user.APIKey, error)
	DeleteAPIKey(ctx context.Context, id, userID string) error

	// Projects
	ListProjects(ctx context.Context, ownerID string) ([]project.Summary, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error)
	CreateProject(ctx context.Context, p *project.Project) error
	UpdateProject(ctx context.Context, p *project.Project) error
	UpdateProjectFiles(ctx context.Context, id string, files vfs.FileMap) error
	DeleteProject(ctx context.Context, id string) error
}
