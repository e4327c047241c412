//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// SiteSettingsSection holds branding values such as the logo URL.
const SiteSettingsSection = "site_settings"

// LogoURLField is the site_settings key holding the public logo URL.
const LogoURLField = "logo_url"

var sectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ContentSection is one editable block of the public marketing site.
type ContentSection struct {
	Section   string         `json:"section"              db:"section"`
	Data      map[string]any `json:"data"                 db:"data"`
	UpdatedBy *string        `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt time.Time      `json:"updated_at"           db:"updated_at"`
}

// UpsertContentRequest replaces the data of a section, creating it when missing.
type UpsertContentRequest struct {
	Section   string         `json:"section"`
	Data      map[string]any `json:"data"`
	UpdatedBy string         `json:"-"`
}

// Normalize trims and lowercases the section name.
func (r *UpsertContentRequest) Normalize() {
	r.Section = strings.ToLower(strings.TrimSpace(r.Section))
}

// Validate checks the request shape.
func (r *UpsertContentRequest) Validate() error {
	if r.Section == "" {
		return errors.New("section is required")
	}
	if !sectionNamePattern.MatchString(r.Section) {
		return errors.New("section must match [a-z0-9_-] and be at most 64 characters")
	}
	if r.Data == nil {
		return errors.New("data is required")
	}
	return nil
}
