// ABOUTME: Subcommand implementations for the authstore CLI
// ABOUTME: Each command opens the configured store, acts through the identity adapter and prints results

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/2389/authstore/internal/docstore"
	"github.com/2389/authstore/internal/identity"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func formatExpiry(s *identity.Session) string {
	return s.ExpiresAt().UTC().Format(time.RFC3339)
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("init", out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.adapter.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensuring tables: %w", err)
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Tables ready ")
	gray.Fprintf(out, "(driver %s)\n", e.cfg.Database.Driver)
	return nil
}

// parseSeedAccount parses provider:accountId:accessToken[:providerType].
func parseSeedAccount(s string) (identity.SeedAccount, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return identity.SeedAccount{}, fmt.Errorf("account %q: want provider:accountId:accessToken[:type]", s)
	}
	acct := identity.SeedAccount{
		ProviderID:        parts[0],
		ProviderAccountID: parts[1],
		AccessToken:       parts[2],
	}
	if len(parts) == 4 {
		acct.ProviderType = parts[3]
	}
	return acct, nil
}

// loadSeedDetails reads seed details from a JSON file or, for any other
// extension, a YAML file.
func loadSeedDetails(path string) (identity.SeedDetails, error) {
	var details identity.SeedDetails
	data, err := os.ReadFile(path)
	if err != nil {
		return details, fmt.Errorf("reading seed file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &details)
	} else {
		err = yaml.Unmarshal(data, &details)
	}
	if err != nil {
		return details, fmt.Errorf("parsing seed file: %w", err)
	}
	return details, nil
}

func runSeed(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("seed", out)
	file := fs.String("file", "", "YAML or JSON file with seed details")
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "user display name")
	image := fs.String("image", "", "user image URL")
	var accounts []identity.SeedAccount
	fs.Func("account", "provider:accountId:accessToken[:type] (repeatable)", func(s string) error {
		acct, err := parseSeedAccount(s)
		if err != nil {
			return err
		}
		accounts = append(accounts, acct)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}

	var details identity.SeedDetails
	if *file != "" {
		var err error
		details, err = loadSeedDetails(*file)
		if err != nil {
			return err
		}
	}
	// Flags override file values
	if *email != "" {
		details.Email = *email
	}
	if *name != "" {
		details.Name = *name
	}
	if *image != "" {
		details.Image = *image
	}
	details.Accounts = append(details.Accounts, accounts...)

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	token, err := identity.SeedSession(ctx, e.adapter, details)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

func runUser(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("user", out)
	email := fs.String("email", "", "look the user up by email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" && fs.NArg() != 1 {
		return errors.New("usage: authstore user <id> | --email EMAIL")
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var user *identity.User
	if *email != "" {
		user, err = e.adapter.GetUserByEmail(ctx, *email)
	} else {
		user, err = e.adapter.GetUser(ctx, fs.Arg(0))
	}
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}
	if user == nil {
		return errors.New("user not found")
	}
	return printJSON(out, user)
}

func runLink(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("link", out)
	userID := fs.String("user", "", "user id (required)")
	provider := fs.String("provider", "", "provider id (required)")
	accountID := fs.String("account-id", "", "provider account id (required)")
	providerType := fs.String("type", identity.DefaultProviderType, "provider type")
	accessToken := fs.String("access-token", "", "access token (required)")
	refreshToken := fs.String("refresh-token", "", "refresh token")
	expires := fs.Int64("access-token-expires", 0, "access token expiry, unix seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" || *provider == "" || *accountID == "" || *accessToken == "" {
		return errors.New("--user, --provider, --account-id and --access-token are required")
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.adapter.GetUser(ctx, *userID)
	if err != nil {
		return fmt.Errorf("getting user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s not found", *userID)
	}

	account, err := e.adapter.LinkAccount(ctx, identity.LinkAccountRequest{
		UserID:             user.ID,
		ProviderID:         *provider,
		ProviderType:       *providerType,
		ProviderAccountID:  *accountID,
		AccessToken:        *accessToken,
		RefreshToken:       *refreshToken,
		AccessTokenExpires: *expires,
	})
	if err != nil {
		return fmt.Errorf("linking account: %w", err)
	}
	return printJSON(out, account)
}

func runSession(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("session", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: authstore session <token>")
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	session, err := e.adapter.GetSession(ctx, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	if session == nil {
		return errors.New("session not found or expired")
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, "user:    ")
	fmt.Fprintln(out, session.UserID)
	cyan.Fprint(out, "expires: ")
	fmt.Fprintln(out, formatExpiry(session))
	return nil
}

func runTouch(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("touch", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: authstore touch <token>")
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	session, err := e.adapter.GetSession(ctx, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	if session == nil {
		return errors.New("session not found or expired")
	}

	session, err = e.adapter.UpdateSession(ctx, session)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "✓ ")
	fmt.Fprintf(out, "Session extended until %s\n", formatExpiry(session))
	return nil
}

func runJanitor(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("janitor", out)
	once := fs.Bool("once", false, "run a single sweep and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.adapter.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensuring tables: %w", err)
	}

	janitor := docstore.NewJanitor(e.store, e.cfg.Janitor.Interval, identity.SessionTable())

	if *once {
		n, err := janitor.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweeping: %w", err)
		}
		fmt.Fprintf(out, "purged %d expired documents\n", n)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return janitor.Run(ctx)
	})

	if e.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(e.cfg.Metrics.Path, docstore.Handler(e.registry))
		srv := &http.Server{
			Addr:              e.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			e.logger.Info("serving metrics", "addr", srv.Addr, "path", e.cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
