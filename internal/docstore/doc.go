// Package docstore provides a small document store with hash/range primary
// keys, single-result secondary indexes and an optional TTL attribute.
//
// # Architecture
//
// Store is the one interface every backend implements:
//
//   - MemoryStore: in-process maps, used by tests and the "memory" driver
//   - SQLiteStore: documents and index rows in SQLite (modernc.org/sqlite)
//   - BoltStore: buckets per table in a bbolt file
//   - RedisStore: string keys plus sorted-set indexes in Redis
//
// Tables are declared with a Table value and must be created with
// EnsureTables before use. Operations on unknown tables return
// ErrTableNotFound.
//
// # Documents
//
// Items are JSON objects. Values read back are normalized: integral numbers
// become int64, other numbers float64, arrays []any and objects
// map[string]any. Create and Put return the item as it was stored, so the
// value returned by a write is equal to a later read of the same key.
//
// # Schemas
//
// Each Table carries a Schema. Fields can be required, generated on create
// (see IDField) or defaulted. Defaults are applied on read as well, which
// lets a downstream schema extension (Schema.Keys) introduce new fields
// without rewriting stored documents. Open schemas (AllowUnknown) keep
// unknown keys untouched.
//
// # Indexes
//
// A secondary index maps one string attribute to the primary key of the
// documents carrying it. GetByIndex returns a single document: the one with
// the smallest primary key. Indexes are lookup paths, not uniqueness
// constraints.
//
// # Expiry
//
// When a Table names a TTLAttribute, documents are physically removed once
// that Unix-seconds value has passed. Redis does this natively; the other
// backends implement Expirer and are swept by a Janitor. Reads never filter
// on expiry: callers that need lazy expiry check the attribute themselves.
//
// # Error Handling
//
//   - ErrNotFound: no document for the key or index value
//   - ErrAlreadyExists: Create on a taken primary key
//   - ErrTableNotFound: table was never ensured
//   - *ValidationError (matches ErrValidation): schema violation on write
package docstore
