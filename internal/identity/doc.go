// Package identity persists users, linked provider accounts and login
// sessions for an authentication framework.
//
// # Architecture
//
// Three typed stores sit on top of a docstore.Store, one per table:
//
//   - UserStore: users keyed by generated id, looked up by email
//   - AccountStore: provider links keyed by (providerId, providerAccountId),
//     looked up by userId
//   - SessionStore: sessions keyed by generated id (the session token)
//
// Adapter combines them into the operations the framework calls and
// SeedSession provisions a user, its accounts and a session in one call.
//
// # Absent Values
//
// Every read returns (nil, nil) when the record does not exist. GetSession
// also returns (nil, nil) for a session whose expiry is at or before now,
// without deleting it. Errors are reserved for invalid input and store
// failures, and are passed through unchanged.
//
// # Session Expiry
//
// Expiry values are Unix timestamps in seconds, both in storage and in the
// framework-facing Session. Sessions are never deleted explicitly: the
// sessions table declares expires as its TTL attribute so the backend (or a
// docstore.Janitor) removes them.
//
// # Limitations
//
// The userId index on accounts returns a single account per user. Email
// uniqueness is not enforced: two concurrent CreateUser calls with the same
// email both succeed and GetUserByEmail returns the one with the smaller id.
package identity
