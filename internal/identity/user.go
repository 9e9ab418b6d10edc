// ABOUTME: User and Profile types and their document mapping
// ABOUTME: Attributes outside the base set are kept in User.Extra and round-trip unchanged

package identity

import (
	"encoding/json"
	"fmt"

	"github.com/2389/authstore/internal/docstore"
)

// User is a person known to the authentication framework.
type User struct {
	ID            string
	Email         *string
	EmailVerified *bool
	Name          *string
	Image         *string

	// Extra holds attributes added by downstream schemas.
	Extra map[string]any
}

// Profile is the input to CreateUser. Empty strings mean absent.
type Profile struct {
	Email         string
	EmailVerified *bool
	Name          string
	Image         string
}

var userBaseFields = map[string]bool{
	"id":            true,
	"email":         true,
	"emailVerified": true,
	"name":          true,
	"image":         true,
}

func (u *User) toItem() docstore.Item {
	item := docstore.Item{}
	for k, v := range u.Extra {
		if !userBaseFields[k] {
			item[k] = v
		}
	}
	if u.ID != "" {
		item["id"] = u.ID
	}
	if u.Email != nil {
		item["email"] = *u.Email
	}
	if u.EmailVerified != nil {
		item["emailVerified"] = *u.EmailVerified
	}
	if u.Name != nil {
		item["name"] = *u.Name
	}
	if u.Image != nil {
		item["image"] = *u.Image
	}
	return item
}

func userFromItem(item docstore.Item) (*User, error) {
	u := &User{}
	for k, v := range item {
		switch k {
		case "id":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("user id has type %T", v)
			}
			u.ID = s
		case "email":
			u.Email = stringPtr(v)
		case "emailVerified":
			if b, ok := v.(bool); ok {
				u.EmailVerified = &b
			}
		case "name":
			u.Name = stringPtr(v)
		case "image":
			u.Image = stringPtr(v)
		default:
			if u.Extra == nil {
				u.Extra = make(map[string]any)
			}
			u.Extra[k] = v
		}
	}
	return u, nil
}

// MarshalJSON flattens Extra next to the base fields.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(u.toItem()))
}

// UnmarshalJSON accepts the flattened form written by MarshalJSON.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := userFromItem(raw)
	if err != nil {
		return err
	}
	*u = *parsed
	return nil
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
