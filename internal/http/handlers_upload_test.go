package httpx

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/campus-portal/internal/domain/model"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type uploadPart struct {
	folder      string
	filename    string
	contentType string
	content     []byte
}

func uploadBody(t *testing.T, part *uploadPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if part != nil {
		if part.folder != "" {
			require.NoError(t, mw.WriteField("folder", part.folder))
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+part.filename+`"`)
		if part.contentType != "" {
			h.Set("Content-Type", part.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(part.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *apiFixture) upload(t *testing.T, token string, part *uploadPart) map[string]any {
	t.Helper()
	body, ct := uploadBody(t, part)
	rec := f.do(t, request{method: http.MethodPost, path: "/api/upload", token: token, body: body, contentType: ct})
	out := decodeBody(t, rec)
	out["_status"] = rec.Code
	return out
}

func TestUpload_StoresFileAndReturnsURL(t *testing.T) {
	f := newAPIFixture(t)
	instructor := f.signIn(t, "teacher@example.com")

	res := f.upload(t, instructor, &uploadPart{
		folder:      "course-files",
		filename:    "../syllabus.pdf",
		contentType: "application/pdf",
		content:     []byte("%PDF-1.4 test"),
	})

	require.Equal(t, http.StatusOK, res["_status"], res)
	keys := f.storage.keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "course-files/"), keys[0])
	assert.True(t, strings.HasSuffix(keys[0], "-syllabus.pdf"), keys[0])
	assert.Equal(t, "https://cdn.example.test/"+keys[0], res["url"])
}

func TestUpload_SniffsMissingContentType(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.signIn(t, "admin@example.com")

	res := f.upload(t, admin, &uploadPart{
		folder:   model.BrandingFolder,
		filename: "logo.png",
		content:  pngHeader,
	})

	require.Equal(t, http.StatusOK, res["_status"], res)
	keys := f.storage.keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "image/png", f.storage.types[keys[0]])

	settings, err := f.content.Get(t.Context(), model.SiteSettingsSection)
	require.NoError(t, err)
	assert.Equal(t, res["url"], settings.Data[model.LogoURLField])
}

func TestUpload_Rejections(t *testing.T) {
	f := newAPIFixture(t)
	instructor := f.signIn(t, "teacher@example.com")
	student := f.signIn(t, "student@example.com")

	tests := []struct {
		name     string
		token    string
		part     *uploadPart
		wantCode int
	}{
		{name: "student", token: student, part: &uploadPart{filename: "a.pdf", contentType: "application/pdf", content: []byte("x")}, wantCode: http.StatusForbidden},
		{name: "anonymous", part: &uploadPart{filename: "a.pdf", contentType: "application/pdf", content: []byte("x")}, wantCode: http.StatusUnauthorized},
		{name: "missing file", token: instructor, wantCode: http.StatusBadRequest},
		{name: "empty file", token: instructor, part: &uploadPart{filename: "a.pdf", contentType: "application/pdf"}, wantCode: http.StatusBadRequest},
		{name: "disallowed type", token: instructor, part: &uploadPart{filename: "a.sh", contentType: "text/x-shellscript", content: []byte("echo")}, wantCode: http.StatusBadRequest},
		{name: "over limit", token: instructor, part: &uploadPart{filename: "a.pdf", contentType: "application/pdf", content: bytes.Repeat([]byte("a"), 2048)}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.upload(t, tt.token, tt.part)
			assert.Equal(t, tt.wantCode, res["_status"], res)
			assert.Contains(t, res, "error")
		})
	}
	assert.Empty(t, f.storage.keys())
}

func TestUpload_RequiresMultipart(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.signIn(t, "admin@example.com")

	rec := f.do(t, request{
		method:      http.MethodPost,
		path:        "/api/upload",
		token:       admin,
		body:        strings.NewReader(`{"file":"x"}`),
		contentType: "application/json",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"error": "expected multipart/form-data body"}, decodeBody(t, rec))
}
