package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

func TestProfiles_Get(t *testing.T) {
	f := newAPIFixture(t)
	student := f.signIn(t, "student@example.com")
	admin := f.signIn(t, "admin@example.com")
	instructor := f.signIn(t, "teacher@example.com")

	tests := []struct {
		name     string
		token    string
		path     string
		wantCode int
	}{
		{name: "self", token: student, path: "/api/profiles/student-1", wantCode: http.StatusOK},
		{name: "admin reads student", token: admin, path: "/api/profiles/student-1", wantCode: http.StatusOK},
		{name: "student reads admin", token: student, path: "/api/profiles/admin-1", wantCode: http.StatusForbidden},
		{name: "instructor reads student", token: instructor, path: "/api/profiles/student-1", wantCode: http.StatusForbidden},
		{name: "admin reads missing", token: admin, path: "/api/profiles/nobody", wantCode: http.StatusNotFound},
		{name: "anonymous", path: "/api/profiles/student-1", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, request{method: http.MethodGet, path: tt.path, token: tt.token})
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestProfiles_GetSelfWithoutProfileIsNotFound(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signIn(t, "student@example.com")
	f.profiles.mu.Lock()
	delete(f.profiles.rows, "student-1")
	f.profiles.mu.Unlock()

	rec := f.do(t, request{method: http.MethodGet, path: "/api/profiles/student-1", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_Update(t *testing.T) {
	f := newAPIFixture(t)
	student := f.signIn(t, "student@example.com")
	admin := f.signIn(t, "admin@example.com")

	t.Run("self service fields", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPatch,
			path:        "/api/profiles/student-1",
			token:       student,
			body:        jsonBody(t, map[string]string{"first_name": " Ada ", "phone": "+61 400 000 000"}),
			contentType: "application/json",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "Ada", body["first_name"])
		assert.Equal(t, "+61 400 000 000", body["phone"])
	})

	t.Run("student cannot change own role", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPatch,
			path:        "/api/profiles/student-1",
			token:       student,
			body:        jsonBody(t, map[string]string{"role": "admin"}),
			contentType: "application/json",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", decodeBody(t, rec)["error"])
	})

	t.Run("admin changes student role", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPatch,
			path:        "/api/profiles/student-1",
			token:       admin,
			body:        jsonBody(t, map[string]string{"role": "instructor"}),
			contentType: "application/json",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p, err := f.profiles.GetByUserID(t.Context(), "student-1")
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleInstructor, p.Role)
	})

	t.Run("validation names the field", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPatch,
			path:        "/api/profiles/student-1",
			token:       student,
			body:        jsonBody(t, map[string]string{"phone": "call me"}),
			contentType: "application/json",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "validation", body["error"])
		assert.Equal(t, "phone", body["field"])
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPatch,
			path:        "/api/profiles/student-1",
			token:       student,
			body:        jsonBody(t, map[string]string{"email": "new@example.com"}),
			contentType: "application/json",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
	})
}

func TestAdminProfiles_List(t *testing.T) {
	f := newAPIFixture(t)
	f.signIn(t, "student@example.com")
	f.signIn(t, "teacher@example.com")
	admin := f.signIn(t, "admin@example.com")

	rec := f.do(t, request{method: http.MethodGet, path: "/api/admin/profiles?role=instructor", token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profiles := decodeBody(t, rec)["profiles"].([]any)
	require.Len(t, profiles, 1)
	assert.Equal(t, "instructor-1", profiles[0].(map[string]any)["user_id"])

	rec = f.do(t, request{method: http.MethodGet, path: "/api/admin/profiles?limit=2&offset=0", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["profiles"], 2)

	rec = f.do(t, request{method: http.MethodGet, path: "/api/admin/profiles?q=nobody", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["profiles"])

	rec = f.do(t, request{method: http.MethodGet, path: "/api/admin/profiles?status=frozen", token: admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status", decodeBody(t, rec)["field"])
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	f := newAPIFixture(t)
	instructor := f.signIn(t, "teacher@example.com")

	for _, path := range []string{"/api/admin/profiles", "/api/admin/summary"} {
		rec := f.do(t, request{method: http.MethodGet, path: path, token: instructor})
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "insufficient_permissions", decodeBody(t, rec)["error"])

		rec = f.do(t, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminSummary(t *testing.T) {
	f := newAPIFixture(t)
	f.signIn(t, "student@example.com")
	f.signIn(t, "teacher@example.com")
	admin := f.signIn(t, "admin@example.com")

	rec := f.do(t, request{method: http.MethodGet, path: "/api/admin/summary", token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.InDelta(t, 3, body["total"], 0)
	assert.Equal(t, map[string]any{"admin": 1.0, "instructor": 1.0, "student": 1.0}, body["by_role"])
	assert.Equal(t, map[string]any{"active": 3.0}, body["by_status"])
}
