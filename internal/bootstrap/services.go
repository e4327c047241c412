package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/campus-portal/config"
	redisadapter "github.com/target/campus-portal/internal/adapters/redis"
	"github.com/target/campus-portal/internal/adapters/s3storage"
	"github.com/target/campus-portal/internal/core"
	"github.com/target/campus-portal/internal/data"
	"github.com/target/campus-portal/internal/observability/statsd"
	"github.com/target/campus-portal/internal/ports"
	"github.com/target/campus-portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth     *service.AuthService
	Profiles *service.ProfileService
	Content  *service.ContentService
	Uploads  *service.UploadService // nil when no storage bucket is configured
	Metrics  *statsd.Client         // nil when metrics are disabled
}

// Close releases resources owned by the container.
func (c ServiceContainer) Close() error {
	return c.Metrics.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger

	// Optional overrides, mainly for tests.
	Verifier ports.CredentialVerifier
	Storage  core.ObjectStorage
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Profiles *data.ProfileRepo
	Content  core.ContentRepository
	Sessions *redisadapter.SessionStore
	Notifier *redisadapter.SessionNotifier
}

// SessionKeyPrefix is the Redis key prefix for stored sessions.
func SessionKeyPrefix(cfg config.RedisConfig) string { return cfg.SessionPrefix + "session:" }

// SessionEventPrefix is the Redis Pub/Sub channel prefix for session changes.
func SessionEventPrefix(cfg config.RedisConfig) string { return cfg.SessionPrefix + "session-events:" }

// CacheKeyPrefix is the Redis key prefix for cached content.
func CacheKeyPrefix(cfg config.RedisConfig) string { return cfg.SessionPrefix + "cache:" }

func buildRepositories(cfg *config.AppConfig, db *sql.DB, client redis.UniversalClient, logger *slog.Logger) (*serviceRepositories, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	notifier, err := redisadapter.NewSessionNotifier(redisadapter.SessionNotifierOptions{
		Client: client,
		Prefix: SessionEventPrefix(cfg.Redis),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session notifier: %w", err)
	}
	return &serviceRepositories{
		Profiles: data.NewProfileRepo(db),
		Content:  contentRepository(cfg.Redis, db, client, logger),
		Sessions: redisadapter.NewSessionStoreWithPrefix(client, SessionKeyPrefix(cfg.Redis)),
		Notifier: notifier,
	}, nil
}

// contentRepository puts the Redis cache in front of the content table unless it is disabled.
//
//nolint:ireturn // callers depend on the port.
func contentRepository(cfg config.RedisConfig, db *sql.DB, client redis.UniversalClient, logger *slog.Logger) core.ContentRepository {
	repo := data.NewContentRepo(db)
	if cfg.ContentCacheTTL <= 0 {
		return repo
	}
	return core.NewCachedContentRepository(core.CachedContentRepositoryOptions{
		Repo:   repo,
		Cache:  data.NewRedisCacheRepo(client, CacheKeyPrefix(cfg)),
		Config: core.ContentCacheConfig{TTL: cfg.ContentCacheTTL},
		Logger: logger,
	})
}

// buildMetrics returns a StatsD client, or nil when metrics are disabled or the dial fails.
func buildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// metricsSink avoids handing services a typed-nil interface.
//
//nolint:ireturn // Sink is the dependency services accept.
func metricsSink(c *statsd.Client) statsd.Sink {
	if c == nil {
		return nil
	}
	return c
}

// NewServices wires repositories, adapters, and services from configuration.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repos, err := buildRepositories(cfg, deps.DB, deps.RedisClient, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	verifier := deps.Verifier
	if verifier == nil {
		verifier, err = BuildCredentialVerifier(ctx, VerifierConfig{
			Auth:     cfg.Auth,
			DB:       deps.DB,
			Profiles: repos.Profiles,
			Logger:   logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("credential verifier: %w", err)
		}
	}

	metricsClient := buildMetrics(logger, cfg.Observability.Metrics)
	sink := metricsSink(metricsClient)

	container := ServiceContainer{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Verifier:   verifier,
			Sessions:   repos.Sessions,
			Roles:      RoleMapper(cfg.Auth),
			Profiles:   repos.Profiles,
			Notifier:   repos.Notifier,
			Metrics:    sink,
			SessionTTL: cfg.Auth.SessionTTL,
			Logger:     logger,
		}),
		Profiles: service.NewProfileService(service.ProfileServiceOptions{
			Profiles: repos.Profiles,
			Notifier: repos.Notifier,
			Logger:   logger,
		}),
		Content: service.NewContentService(service.ContentServiceOptions{
			Repo:   repos.Content,
			Logger: logger,
		}),
		Metrics: metricsClient,
	}

	storage := deps.Storage
	if storage == nil && cfg.Storage.Enabled() {
		s, storageErr := s3storage.New(ctx, s3storage.Config{
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			AccessKeyID:    cfg.Storage.AccessKeyID,
			SecretKey:      cfg.Storage.SecretAccessKey,
			Endpoint:       cfg.Storage.Endpoint,
			PublicBaseURL:  cfg.Storage.PublicBaseURL,
			ForcePathStyle: cfg.Storage.ForcePathStyle,
			UploadTimeout:  cfg.Storage.UploadTimeout,
		})
		if storageErr != nil {
			return ServiceContainer{}, errors.Join(fmt.Errorf("object storage: %w", storageErr), container.Close())
		}
		storage = s
	}
	if storage == nil {
		logger.WarnContext(ctx, "uploads disabled: STORAGE_BUCKET not set")
		return container, nil
	}

	container.Uploads = service.NewUploadService(service.UploadServiceOptions{
		Storage:      storage,
		Content:      repos.Content,
		MaxBytes:     cfg.Storage.MaxUploadBytes,
		AllowedTypes: cfg.Storage.AllowedTypes,
		Metrics:      sink,
		Logger:       logger,
	})
	return container, nil
}
