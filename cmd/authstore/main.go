// ABOUTME: Entry point for the authstore command line tool
// ABOUTME: Provisions tables, seeds users and sessions, and runs the expiry janitor

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/2389/authstore/internal/config"
	"github.com/2389/authstore/internal/docstore"
	"github.com/2389/authstore/internal/identity"
	"github.com/2389/authstore/internal/logging"
)

// Version is set at build time.
var version = "dev"

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: authstore <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init                    Create the users, accounts and sessions tables")
	fmt.Fprintln(w, "  seed [flags]            Create a user with linked accounts and print a session token")
	fmt.Fprintln(w, "  user <id> | --email E   Show a user")
	fmt.Fprintln(w, "  link [flags]            Link a provider account to a user")
	fmt.Fprintln(w, "  session <token>         Show a live session")
	fmt.Fprintln(w, "  touch <token>           Slide a session's expiry forward")
	fmt.Fprintln(w, "  janitor                 Purge expired sessions until interrupted")
	fmt.Fprintln(w, "  version                 Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a single subcommand, writing user-facing output to out.
func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "init":
		return runInit(ctx, args, out)
	case "seed":
		return runSeed(ctx, args, out)
	case "user":
		return runUser(ctx, args, out)
	case "link":
		return runLink(ctx, args, out)
	case "session":
		return runSession(ctx, args, out)
	case "touch":
		return runTouch(ctx, args, out)
	case "janitor":
		return runJanitor(ctx, args, out)
	case "version":
		fmt.Fprintln(out, version)
		return nil
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// env bundles everything a subcommand needs. Close releases the store.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    docstore.Store
	registry *prometheus.Registry
	adapter  *identity.Adapter
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv loads configuration, opens the configured backend and builds an
// adapter over an instrumented store.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	store, err := docstore.Open(ctx, docstore.Options{
		Driver:        cfg.Database.Driver,
		Path:          cfg.Database.Path,
		RedisAddr:     cfg.Database.Redis.Addr,
		RedisPassword: cfg.Database.Redis.Password,
		RedisDB:       cfg.Database.Redis.DB,
		KeyPrefix:     cfg.Database.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry := prometheus.NewRegistry()
	store = docstore.Instrument(store, docstore.NewCollector(registry))

	adapter := identity.NewAdapter(store,
		identity.WithSessionLength(cfg.Session.MaxAge),
		identity.WithLogger(logger),
	)

	logger.Debug("store opened", "driver", cfg.Database.Driver)

	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		adapter:  adapter,
	}, nil
}
