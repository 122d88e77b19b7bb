// Package project defines the Project domain entity.
package project

import (
	"time"

	"github.com/cipherstudio/cipherstudio/internal/domain/vfs"
)

// Supported project frameworks.
const (
	FrameworkVanilla = "vanilla"
	FrameworkReact   = "react"
	FrameworkVue     = "vue"
	FrameworkAngular = "angular"
	FrameworkSvelte  = "svelte"
	FrameworkNext    = "next"
	FrameworkNuxt    = "nuxt"
)

// ValidFrameworks is the set of frameworks a project may declare.
var ValidFrameworks = map[string]bool{
	FrameworkVanilla: true,
	FrameworkReact:   true,
	FrameworkVue:     true,
	FrameworkAngular: true,
	FrameworkSvelte:  true,
	FrameworkNext:    true,
	FrameworkNuxt:    true,
}

// Settings holds per-project editor behavior.
type Settings struct {
	Framework string `json:"framework"`
	AutoSave  bool   `json:"auto_save"`
}

// Project represents a browser IDE workspace and its file map.
type Project struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	OwnerID     string      `json:"owner_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Settings    Settings    `json:"settings"`
	Files       vfs.FileMap `json:"files"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Settings    *Settings   `json:"settings,omitempty"`
	Files       vfs.FileMap `json:"files,omitempty"`
}

// UpdateRequest holds optional fields for updating a project.
// Nil pointers leave the corresponding field unchanged.
type UpdateRequest struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Settings    *Settings    `json:"settings,omitempty"`
	Files       *vfs.FileMap `json:"files,omitempty"`
}

// Summary is the list representation of a project, without the file map.
type Summary struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Settings    Settings  `json:"settings"`
	FileCount   int       `json:"file_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summarize strips the file map from a project for list responses.
func (p *Project) Summarize() Summary {
	return Summary{
		ID:          p.ID,
		Slug:        p.Slug,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Settings:    p.Settings,
		FileCount:   len(p.Files),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
