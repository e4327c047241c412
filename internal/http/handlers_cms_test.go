package httpx

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCMSUpsert_BodyFormats(t *testing.T) {
	multipartBody := func(t *testing.T) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("section", "hero"))
		require.NoError(t, mw.WriteField("title", "Learn Go"))
		require.NoError(t, mw.WriteField("tags", "go"))
		require.NoError(t, mw.WriteField("tags", "web"))
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	tests := []struct {
		name string
		body func(t *testing.T) (string, string)
		want map[string]any
	}{
		{
			name: "json",
			body: func(t *testing.T) (string, string) {
				b, err := json.Marshal(map[string]any{"section": "hero", "data": map[string]any{"title": "Learn Go", "order": 2}})
				require.NoError(t, err)
				return string(b), "application/json"
			},
			want: map[string]any{"title": "Learn Go", "order": 2.0},
		},
		{
			name: "url encoded form",
			body: func(*testing.T) (string, string) {
				v := url.Values{"section": {"hero"}, "title": {"Learn Go"}}
				return v.Encode(), "application/x-www-form-urlencoded"
			},
			want: map[string]any{"title": "Learn Go"},
		},
		{
			name: "multipart form",
			body: func(t *testing.T) (string, string) {
				buf, ct := multipartBody(t)
				return buf.String(), ct
			},
			want: map[string]any{"title": "Learn Go", "tags": []string{"go", "web"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			admin := f.signIn(t, "admin@example.com")
			body, ct := tt.body(t)

			rec := f.do(t, request{
				method:      http.MethodPost,
				path:        "/api/cms",
				token:       admin,
				body:        strings.NewReader(body),
				contentType: ct,
			})

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, map[string]any{"ok": true}, decodeBody(t, rec))

			stored, err := f.content.Get(t.Context(), "hero")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Data)
			require.NotNil(t, stored.UpdatedBy)
			assert.Equal(t, "admin-1", *stored.UpdatedBy)
		})
	}
}

func TestCMSUpsert_Errors(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.signIn(t, "admin@example.com")
	instructor := f.signIn(t, "teacher@example.com")

	tests := []struct {
		name        string
		token       string
		body        string
		contentType string
		wantCode    int
		wantError   string
	}{
		{
			name:        "bad section name",
			token:       admin,
			body:        `{"section":"Hero Banner!","data":{}}`,
			contentType: "application/json",
			wantCode:    http.StatusBadRequest,
			wantError:   "section must match [a-z0-9_-] and be at most 64 characters",
		},
		{
			name:        "missing data",
			token:       admin,
			body:        `{"section":"hero"}`,
			contentType: "application/json",
			wantCode:    http.StatusBadRequest,
			wantError:   "data is required",
		},
		{
			name:        "malformed json",
			token:       admin,
			body:        `{"section":`,
			contentType: "application/json",
			wantCode:    http.StatusBadRequest,
			wantError:   "invalid JSON body",
		},
		{
			name:        "form without section",
			token:       admin,
			body:        "title=x",
			contentType: "application/x-www-form-urlencoded",
			wantCode:    http.StatusBadRequest,
			wantError:   "section is required",
		},
		{
			name:        "too large",
			token:       admin,
			body:        `{"section":"hero","data":{"x":"` + strings.Repeat("a", maxContentBodyBytes) + `"}}`,
			contentType: "application/json",
			wantCode:    http.StatusRequestEntityTooLarge,
			wantError:   "request body too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, request{
				method:      http.MethodPost,
				path:        "/api/cms",
				token:       tt.token,
				body:        strings.NewReader(tt.body),
				contentType: tt.contentType,
			})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, map[string]any{"error": tt.wantError}, decodeBody(t, rec))
		})
	}

	t.Run("non admin", func(t *testing.T) {
		rec := f.do(t, request{
			method:      http.MethodPost,
			path:        "/api/cms",
			token:       instructor,
			body:        strings.NewReader(`{"section":"hero","data":{}}`),
			contentType: "application/json",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, decodeBody(t, rec), "error")
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/api/cms", body: strings.NewReader(`{}`)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCMSRead(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.signIn(t, "admin@example.com")
	rec := f.do(t, request{
		method:      http.MethodPost,
		path:        "/api/cms",
		token:       admin,
		body:        strings.NewReader(`{"section":"about","data":{"body":"hello"}}`),
		contentType: "application/json",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, request{method: http.MethodGet, path: "/api/cms/about"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "about", body["section"])
	assert.Equal(t, map[string]any{"body": "hello"}, body["data"])

	rec = f.do(t, request{method: http.MethodGet, path: "/api/cms"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["sections"], 1)

	rec = f.do(t, request{method: http.MethodGet, path: "/api/cms/missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
