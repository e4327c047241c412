package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
	"github.com/target/campus-portal/internal/observability/metrics"
	"github.com/target/campus-portal/internal/observability/statsd"
)

// DefaultMaxUploadBytes applies when UploadServiceOptions.MaxBytes is zero.
const DefaultMaxUploadBytes int64 = 10 << 20

// DefaultAllowedUploadTypes applies when UploadServiceOptions.AllowedTypes is empty.
var DefaultAllowedUploadTypes = []string{"image/*", "application/pdf"}

// UploadServiceOptions groups dependencies for UploadService.
type UploadServiceOptions struct {
	Storage      core.ObjectStorage
	Content      core.ContentRepository // optional; required for branding uploads
	MaxBytes     int64
	AllowedTypes []string
	Metrics      statsd.Sink // optional
	Logger       *slog.Logger
}

// UploadService validates files and puts them into object storage.
type UploadService struct {
	storage  core.ObjectStorage
	content  core.ContentRepository
	maxBytes int64
	allowed  []string
	metrics  statsd.Sink
	logger   *slog.Logger
	newID    func() string
}

// NewUploadService constructs a new UploadService.
func NewUploadService(opts UploadServiceOptions) *UploadService {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedUploadTypes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		storage:  opts.Storage,
		content:  opts.Content,
		maxBytes: maxBytes,
		allowed:  allowed,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "upload_service"),
		newID:    func() string { return uuid.New().String() },
	}
}

// MaxBytes returns the largest accepted upload.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload stores in under folder/<uuid>-<filename> and returns its public URL.
// Images uploaded to the branding folder become the site logo.
func (s *UploadService) Upload(ctx context.Context, in model.UploadInput) (res *model.UploadResult, err error) {
	start := time.Now()
	defer func() {
		metrics.EmitUpload(s.metrics, metrics.UploadMetric{
			Folder:   model.SanitizeFolder(in.Folder),
			Size:     in.Size,
			Duration: time.Since(start),
			Err:      err,
		})
	}()
	return s.upload(ctx, in)
}

func (s *UploadService) upload(ctx context.Context, in model.UploadInput) (*model.UploadResult, error) {
	if in.Body == nil {
		return nil, apperrors.ValidationField("file", "file is required")
	}
	if in.Size <= 0 {
		return nil, apperrors.ValidationField("file", "file is empty")
	}
	if in.Size > s.maxBytes {
		return nil, apperrors.ValidationField("file", fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	contentType, err := s.checkType(in.ContentType)
	if err != nil {
		return nil, err
	}

	folder := model.SanitizeFolder(in.Folder)
	key := folder + "/" + s.newID() + "-" + model.SanitizeFilename(in.Filename)

	url, err := s.storage.Put(ctx, core.PutObjectParams{
		Key:         key,
		ContentType: contentType,
		Size:        in.Size,
		Body:        in.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	if folder == model.BrandingFolder && strings.HasPrefix(contentType, "image/") {
		if err := s.setLogo(ctx, in.UploadedBy, url); err != nil {
			if delErr := s.storage.Delete(ctx, key); delErr != nil {
				return nil, errors.Join(err, fmt.Errorf("delete object: %w", delErr))
			}
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "file uploaded", "key", key, "size", in.Size, "content_type", contentType, "by", in.UploadedBy)
	return &model.UploadResult{Key: key, URL: url}, nil
}

func (s *UploadService) setLogo(ctx context.Context, actorID, url string) error {
	if s.content == nil {
		return errors.New("branding uploads need a content repository")
	}
	fields := map[string]any{model.LogoURLField: url}
	if err := s.content.MergeFields(ctx, model.SiteSettingsSection, fields, actorID); err != nil {
		return fmt.Errorf("set logo: %w", err)
	}
	return nil
}

// checkType returns the bare media type when it is allowed.
func (s *UploadService) checkType(raw string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil || mediaType == "" {
		return "", apperrors.ValidationField("file", "missing or invalid content type")
	}
	for _, pattern := range s.allowed {
		if matchMediaType(pattern, mediaType) {
			return mediaType, nil
		}
	}
	return "", apperrors.ValidationField("file", fmt.Sprintf("content type %q is not allowed", mediaType))
}

func matchMediaType(pattern, mediaType string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(mediaType, prefix+"/")
	}
	return pattern == mediaType
}
