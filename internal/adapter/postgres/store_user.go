package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cipherstudio/cipherstudio/internal/domain"
	"github.com/cipherstudio/cipherstudio/internal/domain/user"
)

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("encode user settings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, enabled, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Enabled, settings, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", u.Email, domain.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, enabled, settings, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row, "get user "+id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, enabled, settings, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return scanUser(row, "get user by email "+email)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, name, password_hash, role, enabled, settings, created_at, updated_at
		FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows, "scan user")
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()

	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("encode user settings: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $2, role = $3, enabled = $4, settings = $5, updated_at = $6, password_hash = $7
		WHERE id = $1`,
		u.ID, u.Name, u.Role, u.Enabled, settings, u.UpdatedAt, u.PasswordHash,
	)
	return execExpectOne(tag, err, "update user %s", u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete user %s", id)
}

func scanUser(row scannable, opName string) (*user.User, error) {
	var u user.User
	var settings []byte
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Enabled, &settings, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "%s", opName)
	}
	if err := json.Unmarshal(settings, &u.Settings); err != nil {
		return nil, fmt.Errorf("decode user settings: %w", err)
	}
	return &u, nil
}
