package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/domain/model"
	"github.com/target/campus-portal/internal/mocks"
	"go.uber.org/mock/gomock"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return nil, c.failGet
	}
	return c.entries[key], nil
}

func (c *memCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

func (c *memCache) Health(context.Context) error { return nil }

func newCachedRepo(t *testing.T, cache *memCache) (*mocks.MockContentRepository, *core.CachedContentRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockContentRepository(ctrl)
	return repo, core.NewCachedContentRepository(core.CachedContentRepositoryOptions{
		Repo:   repo,
		Cache:  cache,
		Config: core.ContentCacheConfig{TTL: time.Minute},
	})
}

func TestCachedContentRepository_GetReadsThrough(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	repo, cached := newCachedRepo(t, cache)
	ctx := context.Background()

	hero := &model.ContentSection{Section: "hero", Data: map[string]any{"title": "Welcome"}}
	repo.EXPECT().Get(ctx, "hero").Return(hero, nil).Times(1)

	first, err := cached.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", first.Data["title"])
	assert.Equal(t, time.Minute, cache.ttls["content:section:hero"])

	second, err := cached.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", second.Data["title"], "second read is served from the cache")
}

func TestCachedContentRepository_WritesInvalidate(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	repo, cached := newCachedRepo(t, cache)
	ctx := context.Background()

	cache.entries["content:section:hero"] = []byte(`{"section":"hero","data":{"title":"Old"}}`)
	cache.entries["content:section:site_settings"] = []byte(`{"section":"site_settings","data":{}}`)

	req := &model.UpsertContentRequest{Section: "hero", Data: map[string]any{"title": "New"}}
	repo.EXPECT().Upsert(ctx, req).Return(&model.ContentSection{Section: "hero", Data: req.Data}, nil)
	_, err := cached.Upsert(ctx, req)
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, "content:section:hero")

	fields := map[string]any{"logo_url": "https://cdn.example.com/logo.png"}
	repo.EXPECT().MergeFields(ctx, "site_settings", fields, "admin-1").Return(errors.New("db down"))
	require.Error(t, cached.MergeFields(ctx, "site_settings", fields, "admin-1"))
	assert.NotContains(t, cache.entries, "content:section:site_settings", "a failed write still drops the entry")
}

func TestCachedContentRepository_CacheErrorsFallBack(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	cache.failGet = errors.New("redis unavailable")
	repo, cached := newCachedRepo(t, cache)
	ctx := context.Background()

	repo.EXPECT().Get(ctx, "about").Return(&model.ContentSection{Section: "about", Data: map[string]any{}}, nil)
	got, err := cached.Get(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "about", got.Section)
}

func TestCachedContentRepository_MissIsNotCached(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	repo, cached := newCachedRepo(t, cache)
	ctx := context.Background()

	notFound := errors.New("not found")
	repo.EXPECT().Get(ctx, "faq").Return(nil, notFound).Times(2)

	_, err := cached.Get(ctx, "faq")
	require.ErrorIs(t, err, notFound)
	_, err = cached.Get(ctx, "faq")
	require.ErrorIs(t, err, notFound)
	assert.Empty(t, cache.entries)
}

func TestCachedContentRepository_ListBypassesCache(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	repo, cached := newCachedRepo(t, cache)

	repo.EXPECT().List(gomock.Any()).Return([]*model.ContentSection{{Section: "about"}}, nil)
	out, err := cached.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
