// ABOUTME: Account type linking a user to an external provider identity
// ABOUTME: Also holds LinkAccountRequest and provider account id normalization

package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/2389/authstore/internal/docstore"
)

// Account links a User to an account at an external provider.
type Account struct {
	ProviderID         string  `json:"providerId"`
	ProviderAccountID  string  `json:"providerAccountId"`
	UserID             string  `json:"userId"`
	ProviderType       string  `json:"providerType"`
	AccessToken        string  `json:"accessToken"`
	RefreshToken       *string `json:"refreshToken,omitempty"`
	AccessTokenExpires *int64  `json:"accessTokenExpires,omitempty"`
}

// LinkAccountRequest carries the arguments of LinkAccount.
// ProviderAccountID may be a string or a number; zero values of
// RefreshToken and AccessTokenExpires are not persisted.
type LinkAccountRequest struct {
	UserID             string
	ProviderID         string
	ProviderType       string
	ProviderAccountID  any
	RefreshToken       string
	AccessToken        string
	AccessTokenExpires int64
}

func (a *Account) toItem() docstore.Item {
	item := docstore.Item{
		"providerId":        a.ProviderID,
		"providerAccountId": a.ProviderAccountID,
		"userId":            a.UserID,
		"providerType":      a.ProviderType,
		"accessToken":       a.AccessToken,
	}
	if a.RefreshToken != nil {
		item["refreshToken"] = *a.RefreshToken
	}
	if a.AccessTokenExpires != nil {
		item["accessTokenExpires"] = *a.AccessTokenExpires
	}
	return item
}

func accountFromItem(item docstore.Item) *Account {
	a := &Account{}
	a.ProviderID, _ = item.String("providerId")
	a.ProviderAccountID, _ = item.String("providerAccountId")
	a.UserID, _ = item.String("userId")
	a.ProviderType, _ = item.String("providerType")
	a.AccessToken, _ = item.String("accessToken")
	a.RefreshToken = stringPtr(item["refreshToken"])
	if v, ok := item.Int64("accessTokenExpires"); ok {
		a.AccessTokenExpires = &v
	}
	return a
}

// NormalizeAccountID returns the string form of a provider account id so
// that 123 and "123" address the same account.
func NormalizeAccountID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
