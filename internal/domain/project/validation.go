package project

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cipherstudio/cipherstudio/internal/domain"
)

// slugPattern matches lowercase letters, digits, and hyphens only.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateCreateRequest validates the fields of a project creation request.
func ValidateCreateRequest(req CreateRequest) error {
	if err := ValidateSlug(req.Slug); err != nil {
		return err
	}
	if err := validateName(req.Name); err != nil {
		return err
	}
	if len(req.Description) > 500 {
		return fmt.Errorf("description exceeds 500 characters: %w", domain.ErrValidation)
	}
	if req.Settings != nil && req.Settings.Framework != "" && !ValidFrameworks[req.Settings.Framework] {
		return fmt.Errorf("unknown framework %q: %w", req.Settings.Framework, domain.ErrValidation)
	}
	return nil
}

// ValidateUpdateRequest validates the fields of a project update request.
func ValidateUpdateRequest(req UpdateRequest) error {
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return err
		}
	}
	if req.Description != nil && len(*req.Description) > 500 {
		return fmt.Errorf("description exceeds 500 characters: %w", domain.ErrValidation)
	}
	if req.Settings != nil && req.Settings.Framework != "" && !ValidFrameworks[req.Settings.Framework] {
		return fmt.Errorf("unknown framework %q: %w", req.Settings.Framework, domain.ErrValidation)
	}
	return nil
}

// ValidateSlug checks the URL-safe project identifier. Slugs are 3-50
// characters of lowercase letters, digits, and interior hyphens.
func ValidateSlug(slug string) error {
	if len(slug) < 3 {
		return fmt.Errorf("slug must be at least 3 characters: %w", domain.ErrValidation)
	}
	if len(slug) > 50 {
		return fmt.Errorf("slug exceeds 50 characters: %w", domain.ErrValidation)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug may only contain lowercase letters, numbers, and hyphens: %w", domain.ErrValidation)
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("slug cannot start or end with a hyphen: %w", domain.ErrValidation)
	}
	return nil
}

func validateName(name string) error {
	if len(name) < 3 {
		return fmt.Errorf("name must be at least 3 characters: %w", domain.ErrValidation)
	}
	if len(name) > 100 {
		return fmt.Errorf("name exceeds 100 characters: %w", domain.ErrValidation)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name contains control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}

// Slugify derives a slug candidate from a free-form name. Callers must still
// run ValidateSlug on the result since short names can produce short slugs.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 50 {
		s = strings.TrimSuffix(s[:50], "-")
	}
	return s
}
