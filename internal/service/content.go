package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

// ContentServiceOptions groups dependencies for ContentService.
type ContentServiceOptions struct {
	Repo   core.ContentRepository
	Logger *slog.Logger
}

// ContentService manages the editable sections of the public site.
type ContentService struct {
	repo   core.ContentRepository
	logger *slog.Logger
}

// NewContentService constructs a new ContentService.
func NewContentService(opts ContentServiceOptions) *ContentService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{repo: opts.Repo, logger: logger.With("component", "content_service")}
}

// Upsert replaces the data of section on behalf of actorID.
func (s *ContentService) Upsert(ctx context.Context, actorID, section string, data map[string]any) (*model.ContentSection, error) {
	req := &model.UpsertContentRequest{Section: section, Data: data, UpdatedBy: actorID}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	out, err := s.repo.Upsert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upsert content %q: %w", req.Section, err)
	}
	s.logger.InfoContext(ctx, "content updated", "section", req.Section, "by", actorID, "fields", len(data))
	return out, nil
}

// SetFields merges fields into section without touching its other keys.
func (s *ContentService) SetFields(ctx context.Context, actorID, section string, fields map[string]any) error {
	if err := s.repo.MergeFields(ctx, section, fields, actorID); err != nil {
		return fmt.Errorf("merge content %q: %w", section, err)
	}
	return nil
}

// Get returns one section.
func (s *ContentService) Get(ctx context.Context, section string) (*model.ContentSection, error) {
	out, err := s.repo.Get(ctx, section)
	if errors.Is(err, data.ErrContentNotFound) {
		return nil, apperrors.NotFoundf("content section %q not found", section)
	}
	return out, err
}

// List returns every section ordered by name.
func (s *ContentService) List(ctx context.Context) ([]*model.ContentSection, error) {
	return s.repo.List(ctx)
}
