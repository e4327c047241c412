package auth

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	if err != nil || r != RoleAdmin {
		t.Fatalf("expected admin, got %q err=%v", r, err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestRole_Level(t *testing.T) {
	if !(RoleStudent.Level() < RoleInstructor.Level() && RoleInstructor.Level() < RoleAdmin.Level()) {
		t.Fatalf("unexpected role ordering")
	}
	if Role("").Level() != -1 {
		t.Fatalf("expected unknown role to be below student")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	if (Session{}).Expired(now) {
		t.Fatalf("zero expiry must not expire")
	}
	if !(Session{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatalf("expected expired")
	}
}

func TestProfilePatch_Apply(t *testing.T) {
	first := "Ada"
	role := RoleInstructor
	p := Profile{UserID: "u1", FirstName: "A", LastName: "L", Role: RoleStudent}
	patch := ProfilePatch{FirstName: &first, Role: &role}

	got := patch.Apply(p)
	if got.FirstName != "Ada" || got.LastName != "L" || got.Role != RoleInstructor {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if p.FirstName != "A" {
		t.Fatalf("apply mutated its input")
	}
	if !patch.TouchesPrivileged() || patch.IsEmpty() {
		t.Fatalf("unexpected patch flags")
	}
	if !(ProfilePatch{}).IsEmpty() {
		t.Fatalf("expected empty patch")
	}
}

func TestProfile_DisplayName(t *testing.T) {
	if got := (&Profile{Email: "x@example.com"}).DisplayName(); got != "x@example.com" {
		t.Fatalf("expected email fallback, got %q", got)
	}
	if got := (&Profile{FirstName: "Ada", LastName: "Lovelace"}).DisplayName(); got != "Ada Lovelace" {
		t.Fatalf("unexpected name %q", got)
	}
	var nilProfile *Profile
	if nilProfile.IsAdmin() {
		t.Fatalf("nil profile is never admin")
	}
}

func TestAuthState_Role(t *testing.T) {
	if (AuthState{}).Role() != "" {
		t.Fatalf("expected unknown role")
	}
	st := AuthState{Session: &Session{ID: "s"}, Profile: &Profile{Role: RoleAdmin}}
	if !st.SignedIn() || st.Role() != RoleAdmin {
		t.Fatalf("unexpected state: %+v", st)
	}
}
