// ABOUTME: Seeding workflow that provisions a user, its provider accounts and a session
// ABOUTME: Account links are written concurrently and are not rolled back on failure

package identity

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultProviderType is used for seeded accounts that do not set one.
const DefaultProviderType = "oauth"

// SeedAccount is one provider account to link while seeding.
type SeedAccount struct {
	ProviderID        string `json:"providerId" yaml:"provider_id"`
	ProviderAccountID any    `json:"providerAccountId" yaml:"provider_account_id"`
	ProviderType      string `json:"providerType,omitempty" yaml:"provider_type"`
	AccessToken       string `json:"accessToken" yaml:"access_token"`
	RefreshToken      string `json:"refreshToken,omitempty" yaml:"refresh_token"`
}

// SeedDetails describes the user to provision.
type SeedDetails struct {
	Email    string        `json:"email" yaml:"email"`
	Name     string        `json:"name" yaml:"name"`
	Image    string        `json:"image" yaml:"image"`
	Accounts []SeedAccount `json:"accounts" yaml:"accounts"`
}

// SeedSession ensures the tables exist, creates a user, links every account
// in parallel and then starts a session, returning its token.
//
// All links are attempted even if one fails. The first error is returned and
// the user and any links already written are left in place, so callers must
// be prepared to clean up or retry.
func SeedSession(ctx context.Context, a *Adapter, details SeedDetails) (string, error) {
	if err := a.EnsureTables(ctx); err != nil {
		return "", fmt.Errorf("ensuring tables: %w", err)
	}

	user, err := a.CreateUser(ctx, Profile{
		Email: details.Email,
		Name:  details.Name,
		Image: details.Image,
	})
	if err != nil {
		return "", err
	}

	var g errgroup.Group
	for _, acct := range details.Accounts {
		providerType := acct.ProviderType
		if providerType == "" {
			providerType = DefaultProviderType
		}
		req := LinkAccountRequest{
			UserID:            user.ID,
			ProviderID:        acct.ProviderID,
			ProviderType:      providerType,
			ProviderAccountID: acct.ProviderAccountID,
			AccessToken:       acct.AccessToken,
			RefreshToken:      acct.RefreshToken,
		}
		g.Go(func() error {
			_, err := a.LinkAccount(ctx, req)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Warn("seeding left a partial user", "user_id", user.ID, "error", err)
		return "", err
	}

	session, err := a.CreateSession(ctx, user)
	if err != nil {
		return "", err
	}
	a.logger.Info("seeded session", "user_id", user.ID, "accounts", len(details.Accounts))
	return session.SessionToken, nil
}
