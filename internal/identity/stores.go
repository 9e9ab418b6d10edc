// ABOUTME: Typed User, Account and Session stores over a docstore.Store
// ABOUTME: docstore.ErrNotFound is translated to a nil result here

package identity

import (
	"context"
	"errors"

	"github.com/2389/authstore/internal/docstore"
)

// UserStore persists users.
type UserStore struct {
	store docstore.Store
	table *docstore.Table
}

// NewUserStore creates a UserStore. A nil table means UserTable().
func NewUserStore(store docstore.Store, table *docstore.Table) *UserStore {
	if table == nil {
		table = UserTable()
	}
	return &UserStore{store: store, table: table}
}

// Table returns the users table definition in use.
func (s *UserStore) Table() *docstore.Table {
	return s.table
}

// Create stores a new user and returns it with its generated id.
func (s *UserStore) Create(ctx context.Context, u *User) (*User, error) {
	item := u.toItem()
	delete(item, "id")
	saved, err := s.store.Create(ctx, s.table, item)
	if err != nil {
		return nil, err
	}
	return userFromItem(saved)
}

// Get returns the user with the given id, or nil.
func (s *UserStore) Get(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}
	item, err := s.store.GetByHashKey(ctx, s.table, id)
	if err != nil {
		return nil, absent(err)
	}
	return userFromItem(item)
}

// GetByEmail returns a user with the given email, or nil.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, nil
	}
	item, err := s.store.GetByIndex(ctx, s.table, UserEmailIndex, email)
	if err != nil {
		return nil, absent(err)
	}
	return userFromItem(item)
}

// Put replaces the stored user with u. Fields missing from u are removed.
func (s *UserStore) Put(ctx context.Context, u *User) (*User, error) {
	saved, err := s.store.Put(ctx, s.table, u.toItem())
	if err != nil {
		return nil, err
	}
	return userFromItem(saved)
}

// AccountStore persists provider account links.
type AccountStore struct {
	store docstore.Store
	table *docstore.Table
}

// NewAccountStore creates an AccountStore.
func NewAccountStore(store docstore.Store) *AccountStore {
	return &AccountStore{store: store, table: AccountTable()}
}

// Create stores a new link. Linking the same provider account twice fails
// with docstore.ErrAlreadyExists.
func (s *AccountStore) Create(ctx context.Context, a *Account) (*Account, error) {
	saved, err := s.store.Create(ctx, s.table, a.toItem())
	if err != nil {
		return nil, err
	}
	return accountFromItem(saved), nil
}

// Get returns the account for the provider pair, or nil.
func (s *AccountStore) Get(ctx context.Context, providerID, providerAccountID string) (*Account, error) {
	if providerID == "" || providerAccountID == "" {
		return nil, nil
	}
	item, err := s.store.GetByHashAndRangeKey(ctx, s.table, providerID, providerAccountID)
	if err != nil {
		return nil, absent(err)
	}
	return accountFromItem(item), nil
}

// GetByUserID returns one account linked to userID, or nil.
func (s *AccountStore) GetByUserID(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, nil
	}
	item, err := s.store.GetByIndex(ctx, s.table, AccountUserIDIndex, userID)
	if err != nil {
		return nil, absent(err)
	}
	return accountFromItem(item), nil
}

// SessionStore persists sessions.
type SessionStore struct {
	store docstore.Store
	table *docstore.Table
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(store docstore.Store) *SessionStore {
	return &SessionStore{store: store, table: SessionTable()}
}

// Create stores a new session with a generated id.
func (s *SessionStore) Create(ctx context.Context, userID string, expires int64) (*SessionRecord, error) {
	rec := &SessionRecord{UserID: userID, Expires: expires}
	saved, err := s.store.Create(ctx, s.table, rec.toItem())
	if err != nil {
		return nil, err
	}
	return sessionFromItem(saved), nil
}

// Get returns the stored session, expired or not, or nil.
func (s *SessionStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	if id == "" {
		return nil, nil
	}
	item, err := s.store.GetByHashKey(ctx, s.table, id)
	if err != nil {
		return nil, absent(err)
	}
	return sessionFromItem(item), nil
}

// GetByUserID returns one session belonging to userID, or nil.
func (s *SessionStore) GetByUserID(ctx context.Context, userID string) (*SessionRecord, error) {
	if userID == "" {
		return nil, nil
	}
	item, err := s.store.GetByIndex(ctx, s.table, SessionUserIDIndex, userID)
	if err != nil {
		return nil, absent(err)
	}
	return sessionFromItem(item), nil
}

// Put replaces the stored session.
func (s *SessionStore) Put(ctx context.Context, r *SessionRecord) (*SessionRecord, error) {
	if r.ID == "" {
		return nil, &docstore.ValidationError{Table: s.table.Name, Field: "id", Reason: "key is required"}
	}
	saved, err := s.store.Put(ctx, s.table, r.toItem())
	if err != nil {
		return nil, err
	}
	return sessionFromItem(saved), nil
}

// absent maps ErrNotFound to a nil error and wraps nothing else.
func absent(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}
