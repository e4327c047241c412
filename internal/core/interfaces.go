package core

import (
	"context"
	"io"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ProfileRepository defines the interface for profile data operations.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domainauth.Profile, error)
	// Ensure creates the profile when missing and returns the stored row either way.
	Ensure(ctx context.Context, profile domainauth.Profile) (*domainauth.Profile, error)
	Update(ctx context.Context, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error)
	List(ctx context.Context, opts model.ProfileListOptions) ([]*domainauth.Profile, error)
	CountByRole(ctx context.Context) (map[domainauth.Role]int, error)
	CountByStatus(ctx context.Context) (map[domainauth.Status]int, error)
}

// AccountRepository defines the interface for local credential records.
type AccountRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// ContentRepository defines the interface for CMS section storage.
type ContentRepository interface {
	Upsert(ctx context.Context, req *model.UpsertContentRequest) (*model.ContentSection, error)
	// MergeFields sets individual keys of a section's data, creating the section when missing.
	MergeFields(ctx context.Context, section string, fields map[string]any, updatedBy string) error
	Get(ctx context.Context, section string) (*model.ContentSection, error)
	List(ctx context.Context) ([]*model.ContentSection, error)
}

// PutObjectParams groups parameters for ObjectStorage.Put.
type PutObjectParams struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectStorage stores uploaded files and returns their public URL.
type ObjectStorage interface {
	Put(ctx context.Context, params PutObjectParams) (string, error)
	Delete(ctx context.Context, key string) error
}
