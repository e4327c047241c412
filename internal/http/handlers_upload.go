package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

// multipartOverhead is the allowance for boundaries and the folder field on top of the file.
const multipartOverhead = 64 << 10

// UploadAPI defines the upload service operations the handler needs.
type UploadAPI interface {
	Upload(ctx context.Context, in model.UploadInput) (*model.UploadResult, error)
	MaxBytes() int64
}

// UploadHandlers serves file uploads into object storage.
type UploadHandlers struct {
	Svc    UploadAPI
	Logger *slog.Logger
}

func (h *UploadHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Upload stores the multipart "file" part under the optional "folder" field.
// POST /api/upload.
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := GetActorFromContext(r.Context())
	if !ok {
		writeBoundaryError(w, r, h.logger(), apperrors.Unauthorized("authentication required"))
		return
	}

	maxBytes := h.Svc.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeBoundaryError(w, r, h.logger(), apperrors.Validation("expected multipart/form-data body"))
			return
		}
		writeBoundaryError(w, r, h.logger(), bodyError(err, "invalid form body"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBoundaryError(w, r, h.logger(), apperrors.ValidationField("file", "file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if sniffed, err := sniffContentType(file); err == nil {
			contentType = sniffed
		}
	}

	res, err := h.Svc.Upload(r.Context(), model.UploadInput{
		Folder:      r.FormValue("folder"),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
		UploadedBy:  actor.UserID,
	})
	if err != nil {
		writeBoundaryError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"url": res.URL})
}

// sniffContentType detects the type from the first 512 bytes and rewinds the file.
func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
