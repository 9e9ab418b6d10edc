// ABOUTME: Identity adapter implementing the operations an authentication framework calls
// ABOUTME: Joins across the user, account and session stores and applies lazy session expiry

package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/authstore/internal/docstore"
)

// DefaultSessionLength is 30 days.
const DefaultSessionLength = 30 * 24 * time.Hour

// ErrUserRequired is returned by CreateSession when no user is given.
var ErrUserRequired = errors.New("user is required")

// ErrSessionRequired is returned by UpdateSession when given a nil session.
var ErrSessionRequired = errors.New("session is required")

// Adapter implements the framework-facing identity operations.
type Adapter struct {
	store    docstore.Store
	users    *UserStore
	accounts *AccountStore
	sessions *SessionStore

	userTable     *docstore.Table
	sessionLength time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSessionLength sets how long a session stays valid after it is created
// or updated. Sub-second precision is dropped. Zero makes every new session
// expire immediately.
func WithSessionLength(d time.Duration) Option {
	return func(a *Adapter) {
		a.sessionLength = d.Truncate(time.Second)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithUserTable replaces the users table definition, typically with one
// built by ExtendUserTable.
func WithUserTable(t *docstore.Table) Option {
	return func(a *Adapter) {
		a.userTable = t
	}
}

// NewAdapter creates an Adapter over store.
func NewAdapter(store docstore.Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:         store,
		userTable:     UserTable(),
		sessionLength: DefaultSessionLength,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "identity")
	a.users = NewUserStore(store, a.userTable)
	a.accounts = NewAccountStore(store)
	a.sessions = NewSessionStore(store)
	return a
}

// SessionLength returns the configured session length.
func (a *Adapter) SessionLength() time.Duration {
	return a.sessionLength
}

// Users returns the underlying user store.
func (a *Adapter) Users() *UserStore {
	return a.users
}

// Accounts returns the underlying account store.
func (a *Adapter) Accounts() *AccountStore {
	return a.accounts
}

// Sessions returns the underlying session store.
func (a *Adapter) Sessions() *SessionStore {
	return a.sessions
}

// EnsureTables creates the users, accounts and sessions tables if missing.
func (a *Adapter) EnsureTables(ctx context.Context) error {
	return a.store.EnsureTables(ctx, a.userTable, a.accounts.table, a.sessions.table)
}

// CreateUser stores a new user built from profile. An empty email is stored
// as absent, and so is emailVerified when there is no email.
func (a *Adapter) CreateUser(ctx context.Context, profile Profile) (*User, error) {
	u := &User{
		Email: nonEmpty(profile.Email),
		Name:  nonEmpty(profile.Name),
		Image: nonEmpty(profile.Image),
	}
	if u.Email != nil {
		u.EmailVerified = profile.EmailVerified
	}

	saved, err := a.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("created user", "user_id", saved.ID)
	return saved, nil
}

// GetUser returns the user with the given id, or nil.
func (a *Adapter) GetUser(ctx context.Context, id string) (*User, error) {
	return a.users.Get(ctx, id)
}

// GetUserByEmail returns the user with the given email, or nil.
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return a.users.GetByEmail(ctx, email)
}

// GetUserByProviderAccountID returns the user linked to the provider
// account, or nil when the account is not linked.
func (a *Adapter) GetUserByProviderAccountID(ctx context.Context, providerID string, providerAccountID any) (*User, error) {
	account, err := a.accounts.Get(ctx, providerID, NormalizeAccountID(providerAccountID))
	if err != nil || account == nil {
		return nil, err
	}
	return a.users.Get(ctx, account.UserID)
}

// UpdateUser replaces the stored user. Fields left out of u are removed.
func (a *Adapter) UpdateUser(ctx context.Context, u *User) (*User, error) {
	if u == nil {
		return nil, ErrUserRequired
	}
	saved, err := a.users.Put(ctx, u)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("updated user", "user_id", saved.ID)
	return saved, nil
}

// LinkAccount stores a provider account link for a user.
func (a *Adapter) LinkAccount(ctx context.Context, req LinkAccountRequest) (*Account, error) {
	account := &Account{
		ProviderID:        req.ProviderID,
		ProviderAccountID: NormalizeAccountID(req.ProviderAccountID),
		UserID:            req.UserID,
		ProviderType:      req.ProviderType,
		AccessToken:       req.AccessToken,
		RefreshToken:      nonEmpty(req.RefreshToken),
	}
	if req.AccessTokenExpires != 0 {
		expires := req.AccessTokenExpires
		account.AccessTokenExpires = &expires
	}

	saved, err := a.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("linked account",
		"user_id", saved.UserID,
		"provider_id", saved.ProviderID,
		"provider_account_id", saved.ProviderAccountID,
	)
	return saved, nil
}

// GetAccount returns the account a user linked with providerID, or nil.
// The userId index yields one account per user, so a user whose indexed
// account belongs to another provider gets nil.
func (a *Adapter) GetAccount(ctx context.Context, userID, providerID string) (*Account, error) {
	account, err := a.accounts.GetByUserID(ctx, userID)
	if err != nil || account == nil {
		return nil, err
	}
	if account.ProviderID != providerID {
		return nil, nil
	}
	return account, nil
}

// CreateSession starts a new session for user.
func (a *Adapter) CreateSession(ctx context.Context, user *User) (*Session, error) {
	if user == nil {
		return nil, ErrUserRequired
	}
	rec, err := a.sessions.Create(ctx, user.ID, a.expiry())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("created session", "user_id", rec.UserID, "expires", rec.Expires)
	return rec.Session(), nil
}

// GetSession returns the session for token, or nil when it does not exist
// or has expired. Expired sessions are left in place.
func (a *Adapter) GetSession(ctx context.Context, token string) (*Session, error) {
	rec, err := a.sessions.Get(ctx, token)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Expires <= a.now().Unix() {
		return nil, nil
	}
	return rec.Session(), nil
}

// UpdateSession slides the session's expiry to now plus the session length.
// The expiry carried by s is ignored.
func (a *Adapter) UpdateSession(ctx context.Context, s *Session) (*Session, error) {
	if s == nil {
		return nil, ErrSessionRequired
	}
	rec, err := a.sessions.Put(ctx, &SessionRecord{
		ID:      s.SessionToken,
		UserID:  s.UserID,
		Expires: a.expiry(),
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("updated session", "user_id", rec.UserID, "expires", rec.Expires)
	return rec.Session(), nil
}

// DeleteSession does nothing. Sessions are removed by the store's TTL handling.
func (a *Adapter) DeleteSession(ctx context.Context, token string) error {
	return nil
}

func (a *Adapter) expiry() int64 {
	return a.now().Unix() + int64(a.sessionLength/time.Second)
}
