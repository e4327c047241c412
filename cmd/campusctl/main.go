package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/target/campus-portal/config"
	"github.com/target/campus-portal/internal/adapters/backendclient"
	"github.com/target/campus-portal/internal/bootstrap"
	"github.com/target/campus-portal/internal/coordinator"
)

type commandFn func(app *app, args []string) error

type command struct {
	name        string
	usage       string
	description string
	run         commandFn
}

// app carries the per-process dependencies shared by every command.
// There is exactly one coordinator per process.
type app struct {
	ctx    context.Context
	logger *slog.Logger
	coord  *coordinator.Coordinator
	out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) //nolint:forbidigo // exit status reflects the command result
}

func run(argv []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("campusctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "Log debug output to stderr")
	baseURL := global.String("base-url", "", "Campus API base URL (overrides CAMPUSCTL_BASE_URL)")
	tokenFile := global.String("token-file", "", "Session token file (overrides CAMPUSCTL_TOKEN_FILE)")
	global.Usage = func() { _ = printUsage(stderr) }
	if err := global.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	args := global.Args()
	if len(args) == 0 {
		_ = printUsage(stderr)
		return 2
	}
	cmd, ok := commands()[args[0]]
	if !ok {
		_ = writef(stderr, "unknown command %q\n\n", args[0])
		_ = printUsage(stderr)
		return 2
	}

	logger := newLogger(stderr, *verbose)
	cfg, err := bootstrap.LoadClientConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *tokenFile != "" {
		cfg.TokenFile = *tokenFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator(cfg, logger)
	if err != nil {
		logger.Error("build client", "error", err)
		return 1
	}
	defer func() {
		if cerr := coord.Close(); cerr != nil {
			logger.Warn("close coordinator", "error", cerr)
		}
	}()

	if err := coord.Initialize(ctx); err != nil {
		// The state is signed out with Err set; signin can still proceed.
		logger.Warn("could not resolve the stored session", "error", err)
	}

	a := &app{ctx: ctx, logger: logger, coord: coord, out: stdout}
	if err := cmd.run(a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_ = writef(stderr, "%s: %s\n", cmd.name, describeError(err))
		logger.Debug("command failed", "command", cmd.name, "error", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newCoordinator(cfg config.ClientConfig, logger *slog.Logger) (*coordinator.Coordinator, error) {
	backend, err := backendclient.New(backendclient.Options{
		BaseURL:    cfg.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Tokens:     backendclient.NewFileTokenStore(cfg.TokenFile),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return coordinator.New(coordinator.Options{
		Backend: backend,
		Logger:  logger,
		Timeout: cfg.Timeout,
	}), nil
}

// describeError prefers the coordinator's user-facing message and falls back to the error text.
func describeError(err error) string {
	var cerr *coordinator.Error
	if errors.As(err, &cerr) {
		return coordinator.UserMessage(err)
	}
	return err.Error()
}

func commands() map[string]command {
	return map[string]command{
		"signin": {
			name:        "signin",
			usage:       "signin -email <email> [-password <pw> | -password-stdin]",
			description: "Sign in and print the landing view",
			run:         runSignIn,
		},
		"signout": {
			name:        "signout",
			usage:       "signout",
			description: "End the current session",
			run:         runSignOut,
		},
		"whoami": {
			name:        "whoami",
			usage:       "whoami",
			description: "Print the signed-in profile",
			run:         runWhoAmI,
		},
		"open": {
			name:        "open",
			usage:       "open <view>",
			description: "Resolve a view for the current session and print render or redirect",
			run:         runOpen,
		},
		"profile": {
			name:        "profile",
			usage:       "profile [-first <name>] [-last <name>] [-phone <phone>] [-avatar <url>]",
			description: "Update your own profile",
			run:         runProfile,
		},
		"watch": {
			name:        "watch",
			usage:       "watch [-from <view>]",
			description: "Print auth state and routing changes until interrupted",
			run:         runWatch,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: campusctl [-v] [-base-url URL] [-token-file PATH] <command> [flags]\n\nCommands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c := cmds[name]
		if err := writef(w, "  %-72s %s\n", c.usage, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
