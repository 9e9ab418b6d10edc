// ABOUTME: Table definitions for users, accounts and sessions
// ABOUTME: The users schema is open and can be extended with ExtendUserTable

package identity

import "github.com/2389/authstore/internal/docstore"

// Index names.
const (
	UserEmailIndex     = "UserEmailIndex"
	AccountUserIDIndex = "AccountUserIdIndex"
	SessionUserIDIndex = "SessionUserIdIndex"
)

// UserTable returns the users table definition.
func UserTable() *docstore.Table {
	return &docstore.Table{
		Name:    "users",
		HashKey: "id",
		Indexes: []docstore.Index{{Name: UserEmailIndex, HashKey: "email"}},
		Schema: docstore.NewSchema(map[string]docstore.Field{
			"id":            docstore.IDField(),
			"email":         {Type: docstore.TypeString},
			"emailVerified": {Type: docstore.TypeBool},
			"name":          {Type: docstore.TypeString},
			"image":         {Type: docstore.TypeString},
		}).AllowUnknown(),
	}
}

// ExtendUserTable returns the users table with additional typed fields.
// Fields with a Default are filled in on every read, including for users
// written before the field existed.
func ExtendUserTable(fields map[string]docstore.Field) *docstore.Table {
	t := UserTable()
	t.Schema = t.Schema.Keys(fields)
	return t
}

// AccountTable returns the accounts table definition.
func AccountTable() *docstore.Table {
	return &docstore.Table{
		Name:     "accounts",
		HashKey:  "providerId",
		RangeKey: "providerAccountId",
		Indexes:  []docstore.Index{{Name: AccountUserIDIndex, HashKey: "userId"}},
		Schema: docstore.NewSchema(map[string]docstore.Field{
			"providerId":         {Type: docstore.TypeString, Required: true},
			"providerAccountId":  {Type: docstore.TypeString, Required: true},
			"providerType":       {Type: docstore.TypeString, Required: true},
			"userId":             {Type: docstore.TypeString, Required: true},
			"accessToken":        {Type: docstore.TypeString, Required: true},
			"refreshToken":       {Type: docstore.TypeString},
			"accessTokenExpires": {Type: docstore.TypeNumber},
		}),
	}
}

// SessionTable returns the sessions table definition.
func SessionTable() *docstore.Table {
	return &docstore.Table{
		Name:         "sessions",
		HashKey:      "id",
		Indexes:      []docstore.Index{{Name: SessionUserIDIndex, HashKey: "userId"}},
		TTLAttribute: "expires",
		Schema: docstore.NewSchema(map[string]docstore.Field{
			"id":      docstore.IDField(),
			"userId":  {Type: docstore.TypeString, Required: true},
			"expires": {Type: docstore.TypeNumber, Required: true},
		}),
	}
}
