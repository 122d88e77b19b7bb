// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation collides with existing state
// (duplicate slug, rename onto an occupied path).
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates the request failed input validation.
var ErrValidation = errors.New("validation failed")
