package authroles

import (
	"strings"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
)

// StaticRoleMapper maps provider groups to roles by exact (case-insensitive) membership.
// Admin wins over instructor; anything else is a student.
type StaticRoleMapper struct {
	AdminGroup      string
	InstructorGroup string
}

var _ ports.RoleMapper = StaticRoleMapper{}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	if hasGroup(groups, m.AdminGroup) {
		return domainauth.RoleAdmin
	}
	if hasGroup(groups, m.InstructorGroup) {
		return domainauth.RoleInstructor
	}
	return domainauth.RoleStudent
}

func hasGroup(groups []string, want string) bool {
	if want == "" {
		return false
	}
	for _, g := range groups {
		if strings.EqualFold(strings.TrimSpace(g), want) {
			return true
		}
	}
	return false
}
