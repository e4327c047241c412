package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/campus-portal/config"
	redisadapter "github.com/target/campus-portal/internal/adapters/redis"
	"github.com/target/campus-portal/internal/bootstrap"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

var errRedisNotConfigured = errors.New("redis not configured")

// connectRedis returns a connected client when configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectRedis(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

// publishChange tells live clients of userID to reload. Redis is optional here; when it
// is missing the change is logged and clients pick it up on their next refresh.
func publishChange(ctx context.Context, cmdCtx *commandContext, change domainauth.SessionChange) {
	client, err := connectRedis(ctx, cmdCtx.Logger, &cmdCtx.Config.Redis)
	if err != nil {
		if errors.Is(err, errRedisNotConfigured) {
			cmdCtx.Logger.Info("no redis configuration detected; live clients were not notified")
			return
		}
		cmdCtx.Logger.Warn("redis unavailable; live clients were not notified", "error", err)
		return
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	notifier, err := redisadapter.NewSessionNotifier(redisadapter.SessionNotifierOptions{
		Client: client,
		Prefix: bootstrap.SessionEventPrefix(cmdCtx.Config.Redis),
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		cmdCtx.Logger.Warn("build session notifier failed", "error", err)
		return
	}
	if err := notifier.Publish(ctx, change); err != nil {
		cmdCtx.Logger.Warn("publish session change failed", "user_id", change.UserID, "error", err)
	}
}

func withDatabase(
	cmdCtx *commandContext,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, cancel := cmdCtx.timeoutContext()
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func withRedis(cmdCtx *commandContext, f func(context.Context, redis.UniversalClient) error) error {
	ctx, cancel := cmdCtx.timeoutContext()
	defer cancel()

	client, err := connectRedis(ctx, cmdCtx.Logger, &cmdCtx.Config.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()
	return f(ctx, client)
}
