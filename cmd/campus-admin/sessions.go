package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	redisadapter "github.com/target/campus-portal/internal/adapters/redis"
	"github.com/target/campus-portal/internal/bootstrap"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

type listSessionsOptions struct {
	UserID string
	Limit  int
}

type revokeSessionOptions struct {
	ID string
}

type sessionRow struct {
	ID      string
	UserID  string
	Email   string
	Expires time.Time
	TTL     time.Duration
}

func parseListSessionsFlags(args []string) (listSessionsOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listSessionsOptions
	fs.StringVar(&opts.UserID, "user", "", "Only list sessions for this user id")
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum sessions to print")
	if err := fs.Parse(args); err != nil {
		return listSessionsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listSessionsOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func parseRevokeSessionFlags(args []string) (revokeSessionOptions, error) {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts revokeSessionOptions
	fs.StringVar(&opts.ID, "id", "", "Session id (required)")
	if err := fs.Parse(args); err != nil {
		return revokeSessionOptions{}, err
	}
	if strings.TrimSpace(opts.ID) == "" {
		return revokeSessionOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSessionsFlags(args)
	if err != nil {
		return err
	}

	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		prefix := bootstrap.SessionKeyPrefix(cmdCtx.Config.Redis)
		store := redisadapter.NewSessionStoreWithPrefix(client, prefix)
		cmdCtx.Logger.Info("scanning redis", "pattern", prefix+"*")

		var rows []sessionRow
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) && len(rows) < opts.Limit {
			key := iter.Val()
			id := strings.TrimPrefix(key, prefix)
			sess, err := store.Get(ctx, id)
			if err != nil {
				if errors.Is(err, domainauth.ErrSessionNotFound) {
					continue
				}
				cmdCtx.Logger.Warn("skipping unreadable session", "key", key, "error", err)
				continue
			}
			if opts.UserID != "" && sess.UserID != opts.UserID {
				continue
			}
			ttl, ttlErr := client.TTL(ctx, key).Result()
			if ttlErr != nil {
				cmdCtx.Logger.Warn("failed to fetch TTL", "key", key, "error", ttlErr)
			}
			rows = append(rows, sessionRow{ID: id, UserID: sess.UserID, Email: sess.Email, Expires: sess.ExpiresAt, TTL: ttl})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		return printSessions(os.Stdout, rows)
	})
}

func printSessions(w io.Writer, rows []sessionRow) error {
	if len(rows) == 0 {
		return writeln(w, "(no sessions found)")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "SESSION\tUSER\tEMAIL\tEXPIRES\tTTL\n"); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.UserID, r.Email, r.Expires.UTC().Format(time.RFC3339), renderTTL(r.TTL)); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\nTotal sessions: %d\n", len(rows))
}

// shortID abbreviates a session id in confirmation messages.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "..." + id[len(id)-4:]
}

func renderTTL(d time.Duration) string {
	switch {
	case d == -1:
		return "no expiry"
	case d == -2:
		return "key missing"
	default:
		return d.Round(time.Second).String()
	}
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeSessionFlags(args)
	if err != nil {
		return err
	}

	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		store := redisadapter.NewSessionStoreWithPrefix(client, bootstrap.SessionKeyPrefix(cmdCtx.Config.Redis))
		sess, err := store.Get(ctx, opts.ID)
		if err != nil {
			if errors.Is(err, domainauth.ErrSessionNotFound) {
				return fmt.Errorf("session %s not found", shortID(opts.ID))
			}
			return err
		}
		if err := store.Delete(ctx, opts.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}

		notifier, err := redisadapter.NewSessionNotifier(redisadapter.SessionNotifierOptions{
			Client: client,
			Prefix: bootstrap.SessionEventPrefix(cmdCtx.Config.Redis),
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		change := domainauth.SessionChange{Event: domainauth.EventSignedOut, UserID: sess.UserID, Session: &sess}
		if err := notifier.Publish(ctx, change); err != nil {
			cmdCtx.Logger.Warn("publish sign-out failed", "user_id", sess.UserID, "error", err)
		}
		return writef(os.Stdout, "revoked session %s for %s\n", shortID(opts.ID), sess.UserID)
	})
}
