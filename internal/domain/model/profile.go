//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// ProfileListOptions filters the admin profile listing. Zero values mean "any".
type ProfileListOptions struct {
	Role   domainauth.Role
	Status domainauth.Status
	Search string
	Limit  int
	Offset int
}

// Normalize clamps pagination to sane bounds.
func (o *ProfileListOptions) Normalize() {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
