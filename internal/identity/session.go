// ABOUTME: Session types: the framework-facing Session and the stored SessionRecord
// ABOUTME: Expiry is a Unix timestamp in seconds in both

package identity

import (
	"time"

	"github.com/2389/authstore/internal/docstore"
)

// Session is the shape the authentication framework expects.
type Session struct {
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
	Expires      int64  `json:"expires"` // Unix seconds
}

// ExpiresAt returns the expiry as a time.
func (s *Session) ExpiresAt() time.Time {
	return time.Unix(s.Expires, 0)
}

// SessionRecord is a session as stored in the sessions table.
type SessionRecord struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Expires int64  `json:"expires"`
}

// Session reshapes the record into framework field names.
func (r *SessionRecord) Session() *Session {
	return &Session{
		SessionToken: r.ID,
		UserID:       r.UserID,
		Expires:      r.Expires,
	}
}

func (r *SessionRecord) toItem() docstore.Item {
	item := docstore.Item{
		"userId":  r.UserID,
		"expires": r.Expires,
	}
	if r.ID != "" {
		item["id"] = r.ID
	}
	return item
}

func sessionFromItem(item docstore.Item) *SessionRecord {
	r := &SessionRecord{}
	r.ID, _ = item.String("id")
	r.UserID, _ = item.String("userId")
	r.Expires, _ = item.Int64("expires")
	return r
}
