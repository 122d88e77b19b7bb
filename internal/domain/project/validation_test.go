package project

import (
	"errors"
	"strings"
	"testing"

	"github.com/cipherstudio/cipherstudio/internal/domain"
)

func TestValidateCreateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid minimal request",
			req:     CreateRequest{Slug: "my-project", Name: "My Project"},
			wantErr: false,
		},
		{
			name: "valid request with all fields",
			req: CreateRequest{
				Slug:        "my-project",
				Name:        "My Project",
				Description: "A test project",
				Settings:    &Settings{Framework: FrameworkReact, AutoSave: true},
			},
			wantErr: false,
		},
		{
			name:    "slug too short",
			req:     CreateRequest{Slug: "ab", Name: "My Project"},
			wantErr: true,
			errMsg:  "slug must be at least 3 characters",
		},
		{
			name:    "slug too long",
			req:     CreateRequest{Slug: strings.Repeat("a", 51), Name: "My Project"},
			wantErr: true,
			errMsg:  "slug exceeds 50 characters",
		},
		{
			name:    "slug at max length is valid",
			req:     CreateRequest{Slug: strings.Repeat("a", 50), Name: "My Project"},
			wantErr: false,
		},
		{
			name:    "slug with uppercase",
			req:     CreateRequest{Slug: "My-Project", Name: "My Project"},
			wantErr: true,
			errMsg:  "lowercase letters, numbers, and hyphens",
		},
		{
			name:    "slug with spaces",
			req:     CreateRequest{Slug: "my project", Name: "My Project"},
			wantErr: true,
			errMsg:  "lowercase letters, numbers, and hyphens",
		},
		{
			name:    "slug with leading hyphen",
			req:     CreateRequest{Slug: "-my-project", Name: "My Project"},
			wantErr: true,
			errMsg:  "cannot start or end with a hyphen",
		},
		{
			name:    "slug with trailing hyphen",
			req:     CreateRequest{Slug: "my-project-", Name: "My Project"},
			wantErr: true,
			errMsg:  "cannot start or end with a hyphen",
		},
		{
			name:    "name too short",
			req:     CreateRequest{Slug: "my-project", Name: "ab"},
			wantErr: true,
			errMsg:  "name must be at least 3 characters",
		},
		{
			name:    "name too long",
			req:     CreateRequest{Slug: "my-project", Name: strings.Repeat("a", 101)},
			wantErr: true,
			errMsg:  "name exceeds 100 characters",
		},
		{
			name:    "name at max length is valid",
			req:     CreateRequest{Slug: "my-project", Name: strings.Repeat("a", 100)},
			wantErr: false,
		},
		{
			name:    "name with control characters",
			req:     CreateRequest{Slug: "my-project", Name: "my-project\x00"},
			wantErr: true,
			errMsg:  "control characters",
		},
		{
			name:    "description too long",
			req:     CreateRequest{Slug: "my-project", Name: "My Project", Description: strings.Repeat("x", 501)},
			wantErr: true,
			errMsg:  "description exceeds 500 characters",
		},
		{
			name:    "description at max length is valid",
			req:     CreateRequest{Slug: "my-project", Name: "My Project", Description: strings.Repeat("x", 500)},
			wantErr: false,
		},
		{
			name:    "unknown framework",
			req:     CreateRequest{Slug: "my-project", Name: "My Project", Settings: &Settings{Framework: "ember"}},
			wantErr: true,
			errMsg:  "unknown framework",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateRequest(tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got: %v", err)
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error to contain %q, got: %v", tt.errMsg, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateUpdateRequest(t *testing.T) {
	name := "Updated"
	shortName := "ab"
	longName := strings.Repeat("a", 101)
	ctrlName := "test\x00"
	desc := strings.Repeat("x", 501)

	tests := []struct {
		name    string
		req     UpdateRequest
		wantErr bool
	}{
		{name: "empty update is valid", req: UpdateRequest{}, wantErr: false},
		{name: "valid name update", req: UpdateRequest{Name: &name}, wantErr: false},
		{name: "too short name", req: UpdateRequest{Name: &shortName}, wantErr: true},
		{name: "too long name", req: UpdateRequest{Name: &longName}, wantErr: true},
		{name: "control char name", req: UpdateRequest{Name: &ctrlName}, wantErr: true},
		{name: "too long description", req: UpdateRequest{Description: &desc}, wantErr: true},
		{name: "valid framework", req: UpdateRequest{Settings: &Settings{Framework: FrameworkVue}}, wantErr: false},
		{name: "unknown framework", req: UpdateRequest{Settings: &Settings{Framework: "ember"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpdateRequest(tt.req)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Project", "my-project"},
		{"  Hello,   World!  ", "hello-world"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER_case 123", "upper-case-123"},
		{strings.Repeat("ab ", 40), strings.TrimSuffix(strings.Repeat("ab-", 17)[:50], "-")},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStarterFiles(t *testing.T) {
	t.Run("react template has preview entrypoints", func(t *testing.T) {
		files := StarterFiles(FrameworkReact)
		for _, path := range []string{"/index.html", "/package.json", "/src/main.jsx", "/src/App.jsx", "/src/App.css", "/src/index.css"} {
			if _, ok := files[path]; !ok {
				t.Errorf("missing starter file %s", path)
			}
		}
	})

	t.Run("default framework is react", func(t *testing.T) {
		files := StarterFiles("")
		if _, ok := files["/src/main.jsx"]; !ok {
			t.Error("empty framework should produce the react template")
		}
	})

	t.Run("other frameworks get a static page", func(t *testing.T) {
		files := StarterFiles(FrameworkVanilla)
		if _, ok := files["/index.html"]; !ok {
			t.Error("vanilla starter must include /index.html")
		}
		if _, ok := files["/src/main.jsx"]; ok {
			t.Error("vanilla starter should not include react entrypoints")
		}
	})
}
