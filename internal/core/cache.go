package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/target/campus-portal/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// The core defines it and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ContentCacheConfig holds configuration for section caching.
type ContentCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// DefaultContentCacheConfig returns a ContentCacheConfig with sensible defaults.
func DefaultContentCacheConfig() ContentCacheConfig {
	return ContentCacheConfig{TTL: 5 * time.Minute}
}

// CachedContentRepositoryOptions bundles dependencies for NewCachedContentRepository.
type CachedContentRepositoryOptions struct {
	Repo   ContentRepository
	Cache  CacheRepository
	Config ContentCacheConfig
	Logger *slog.Logger
}

// CachedContentRepository is a read-through cache in front of a ContentRepository.
// Single-section reads are served from the cache; every write drops the cached
// copy of the section it touched. Cache failures are logged and never surface
// to callers, the underlying repository stays authoritative.
type CachedContentRepository struct {
	repo   ContentRepository
	cache  CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

var _ ContentRepository = (*CachedContentRepository)(nil)

// NewCachedContentRepository wraps opts.Repo with opts.Cache.
func NewCachedContentRepository(opts CachedContentRepositoryOptions) *CachedContentRepository {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultContentCacheConfig().TTL
	}
	return &CachedContentRepository{
		repo:   opts.Repo,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "content_cache"),
	}
}

// Get returns the cached section when present and fills the cache on a miss.
func (r *CachedContentRepository) Get(ctx context.Context, section string) (*model.ContentSection, error) {
	key := contentKey(section)
	if raw, err := r.cache.Get(ctx, key); err != nil {
		r.logger.WarnContext(ctx, "content cache read failed", "section", section, "error", err)
	} else if len(raw) > 0 {
		var cached model.ContentSection
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		r.logger.WarnContext(ctx, "discarding unreadable cache entry", "section", section)
	}

	out, err := r.repo.Get(ctx, section)
	if err != nil {
		return nil, err
	}
	r.store(ctx, out)
	return out, nil
}

// Upsert writes through to the repository and invalidates the section.
func (r *CachedContentRepository) Upsert(ctx context.Context, req *model.UpsertContentRequest) (*model.ContentSection, error) {
	out, err := r.repo.Upsert(ctx, req)
	r.invalidate(ctx, req.Section)
	return out, err
}

// MergeFields writes through to the repository and invalidates the section.
func (r *CachedContentRepository) MergeFields(ctx context.Context, section string, fields map[string]any, updatedBy string) error {
	err := r.repo.MergeFields(ctx, section, fields, updatedBy)
	r.invalidate(ctx, section)
	return err
}

// List always reads from the repository.
func (r *CachedContentRepository) List(ctx context.Context) ([]*model.ContentSection, error) {
	return r.repo.List(ctx)
}

func (r *CachedContentRepository) store(ctx context.Context, section *model.ContentSection) {
	if section == nil {
		return
	}
	raw, err := json.Marshal(section)
	if err != nil {
		r.logger.WarnContext(ctx, "content cache encode failed", "section", section.Section, "error", err)
		return
	}
	if err := r.cache.Set(ctx, contentKey(section.Section), raw, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "content cache write failed", "section", section.Section, "error", err)
	}
}

func (r *CachedContentRepository) invalidate(ctx context.Context, section string) {
	if _, err := r.cache.Delete(ctx, contentKey(section)); err != nil {
		r.logger.WarnContext(ctx, "content cache invalidation failed", "section", section, "error", err)
	}
}

func contentKey(section string) string {
	return "content:section:" + section
}
