package authroles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

func TestStaticRoleMapper_Map(t *testing.T) {
	m := StaticRoleMapper{AdminGroup: "campus-admins", InstructorGroup: "campus-instructors"}
	tests := []struct {
		name   string
		groups []string
		want   domainauth.Role
	}{
		{name: "admin", groups: []string{"staff", "campus-admins"}, want: domainauth.RoleAdmin},
		{name: "admin wins over instructor", groups: []string{"campus-instructors", "CAMPUS-ADMINS"}, want: domainauth.RoleAdmin},
		{name: "instructor", groups: []string{" campus-instructors "}, want: domainauth.RoleInstructor},
		{name: "no groups", groups: nil, want: domainauth.RoleStudent},
		{name: "unrelated", groups: []string{"staff"}, want: domainauth.RoleStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Map(tt.groups))
		})
	}
}

func TestStaticRoleMapper_EmptyGroupsNeverMatch(t *testing.T) {
	assert.Equal(t, domainauth.RoleStudent, StaticRoleMapper{}.Map([]string{""}))
}
