//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// Account is the local credential record for a subject.
type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// CreateAccountRequest provisions local credentials and the matching profile.
type CreateAccountRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domainauth.Role
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the request shape. Password strength is a minimum length only.
func (r *CreateAccountRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("a valid email is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if r.Role == "" {
		r.Role = domainauth.RoleStudent
	}
	if r.Role.Level() < 0 {
		return errors.New("invalid role")
	}
	return nil
}

// ProfileSummary holds the aggregate counts shown on the admin dashboard.
type ProfileSummary struct {
	Total    int                       `json:"total"`
	ByRole   map[domainauth.Role]int   `json:"by_role"`
	ByStatus map[domainauth.Status]int `json:"by_status"`
}
