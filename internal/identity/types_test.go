// ABOUTME: Tests for identity types, table definitions and account id normalization
// ABOUTME: Checks JSON shapes and item conversion without touching a store

package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/authstore/internal/docstore"
)

type stringerID struct{}

func (stringerID) String() string { return "from-stringer" }

func TestNormalizeAccountID(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{123, "123"},
		{int32(-7), "-7"},
		{int64(1700000000000), "1700000000000"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{float64(1700000000000), "1700000000000"},
		{float32(12), "12"},
		{1.5, "1.5"},
		{json.Number("99"), "99"},
		{stringerID{}, "from-stringer"},
		{nil, ""},
		{true, "true"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAccountID(tt.in), "input %#v", tt.in)
	}
}

func TestUser_JSON(t *testing.T) {
	u := User{
		ID:            "user-1",
		Email:         ptr("ada@example.com"),
		EmailVerified: ptr(true),
		Extra:         map[string]any{"plan": "pro", "id": "ignored"},
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"user-1","email":"ada@example.com","emailVerified":true,"plan":"pro"}`, string(data))

	var decoded User
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "user-1", decoded.ID)
	assert.Equal(t, "ada@example.com", *decoded.Email)
	assert.Nil(t, decoded.Name)
	assert.Equal(t, map[string]any{"plan": "pro"}, decoded.Extra)
}

func TestUser_JSONRejectsNonStringID(t *testing.T) {
	var u User
	assert.Error(t, json.Unmarshal([]byte(`{"id": 5}`), &u))
}

func TestSession_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(&Session{SessionToken: "tok", UserID: "user-1", Expires: 1700000000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionToken":"tok","userId":"user-1","expires":1700000000}`, string(data))
}

func TestAccount_ItemOmitsUnsetFields(t *testing.T) {
	a := &Account{
		ProviderID:        "github",
		ProviderAccountID: "1",
		UserID:            "user-1",
		ProviderType:      "oauth",
		AccessToken:       "tok",
	}
	item := a.toItem()
	assert.NotContains(t, item, "refreshToken")
	assert.NotContains(t, item, "accessTokenExpires")
	assert.NoError(t, AccountTable().Schema.Validate("accounts", item))

	back := accountFromItem(item)
	assert.Equal(t, a, back)
}

func TestTables(t *testing.T) {
	for _, table := range []*docstore.Table{UserTable(), AccountTable(), SessionTable()} {
		assert.NoError(t, table.Validate(), table.Name)
	}

	assert.True(t, UserTable().Schema.Open())
	assert.False(t, AccountTable().Schema.Open())
	assert.Equal(t, "expires", SessionTable().TTLAttribute)

	ext := ExtendUserTable(map[string]docstore.Field{"plan": {Type: docstore.TypeString}})
	assert.Equal(t, "users", ext.Name)
	_, ok := ext.Schema.Field("plan")
	assert.True(t, ok)
	_, ok = UserTable().Schema.Field("plan")
	assert.False(t, ok)
}
