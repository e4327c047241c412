package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

const (
	maxContentBodyBytes = 1 << 20
	sectionField        = "section"
)

// ContentAPI defines the content service operations the handlers need.
type ContentAPI interface {
	Upsert(ctx context.Context, actorID, section string, data map[string]any) (*model.ContentSection, error)
	Get(ctx context.Context, section string) (*model.ContentSection, error)
	List(ctx context.Context) ([]*model.ContentSection, error)
}

// ContentHandlers serves the site content endpoints.
type ContentHandlers struct {
	Svc    ContentAPI
	Logger *slog.Logger
}

func (h *ContentHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// List returns every content section.
// GET /api/cms.
func (h *ContentHandlers) List(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	if sections == nil {
		sections = []*model.ContentSection{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

// Get returns one content section.
// GET /api/cms/{section}.
func (h *ContentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	section, err := h.Svc.Get(r.Context(), r.PathValue("section"))
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, section)
}

// Upsert replaces a section's data. The body is JSON {"section", "data"} or a form whose
// "section" field names the section and whose other fields become its data.
// POST /api/cms.
func (h *ContentHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	actor, ok := GetActorFromContext(r.Context())
	if !ok {
		writeBoundaryError(w, r, h.logger(), apperrors.Unauthorized("authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxContentBodyBytes)
	section, data, err := readContentBody(r)
	if err != nil {
		writeBoundaryError(w, r, h.logger(), err)
		return
	}

	if _, err := h.Svc.Upsert(r.Context(), actor.UserID, section, data); err != nil {
		writeBoundaryError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readContentBody extracts the section name and data from a JSON or form body.
func readContentBody(r *http.Request) (string, map[string]any, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxContentBodyBytes); err != nil {
			return "", nil, bodyError(err, "invalid form body")
		}
		return formContent(r.MultipartForm.Value)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", nil, bodyError(err, "invalid form body")
		}
		return formContent(r.PostForm)
	default:
		var req model.UpsertContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, bodyError(err, "invalid JSON body")
		}
		return req.Section, req.Data, nil
	}
}

// formContent turns form values into content data. Single values become strings and
// repeated fields become string lists.
func formContent(values map[string][]string) (string, map[string]any, error) {
	var section string
	if v := values[sectionField]; len(v) > 0 {
		section = v[0]
	}
	data := make(map[string]any, len(values))
	for key, vals := range values {
		switch {
		case key == sectionField || len(vals) == 0:
			continue
		case len(vals) == 1:
			data[key] = vals[0]
		default:
			data[key] = append([]string(nil), vals...)
		}
	}
	return section, data, nil
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return apperrors.Validation(msg)
}
