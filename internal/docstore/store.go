// ABOUTME: Store interface, table definitions and sentinel errors for the document store
// ABOUTME: Every backend (memory, sqlite, bolt, redis) implements Store

package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no document matches a key or index value.
var ErrNotFound = errors.New("document not found")

// ErrAlreadyExists is returned by Create when the primary key is taken.
var ErrAlreadyExists = errors.New("document already exists")

// ErrTableNotFound is returned for operations on a table that was never ensured.
var ErrTableNotFound = errors.New("table not found")

// Item is a single document.
type Item map[string]any

// String returns the string value stored under key.
func (i Item) String(key string) (string, bool) {
	v, ok := i[key].(string)
	return v, ok
}

// Int64 returns the integral number stored under key.
func (i Item) Int64(key string) (int64, bool) {
	switch v := i[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Bool returns the boolean stored under key.
func (i Item) Bool(key string) (bool, bool) {
	v, ok := i[key].(bool)
	return v, ok
}

// Clone returns a shallow copy of the item.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// Index declares a secondary index over a single string attribute.
type Index struct {
	Name    string
	HashKey string
}

// Table declares a document table.
type Table struct {
	Name     string
	HashKey  string
	RangeKey string // empty for hash-only tables
	Indexes  []Index

	// TTLAttribute names a numeric attribute holding a Unix timestamp in
	// seconds after which the document may be physically removed.
	TTLAttribute string

	Schema *Schema
}

// Index returns the index declaration with the given name.
func (t *Table) Index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// Validate checks that the table declaration is usable.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if t.HashKey == "" {
		return fmt.Errorf("table %s: hash key is required", t.Name)
	}
	if t.Schema == nil {
		return fmt.Errorf("table %s: schema is required", t.Name)
	}
	for _, idx := range t.Indexes {
		if idx.Name == "" || idx.HashKey == "" {
			return fmt.Errorf("table %s: index name and hash key are required", t.Name)
		}
	}
	return nil
}

// Store defines document persistence.
type Store interface {
	// EnsureTables creates the given tables if they don't exist.
	EnsureTables(ctx context.Context, tables ...*Table) error

	// Create writes a new document. Generated fields are filled in and the
	// write fails with ErrAlreadyExists if the primary key is taken.
	Create(ctx context.Context, t *Table, item Item) (Item, error)

	// Put writes a document, replacing any existing one with the same key.
	Put(ctx context.Context, t *Table, item Item) (Item, error)

	GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error)
	GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error)

	// GetByIndex returns the document with the smallest primary key among
	// those whose indexed attribute equals value.
	GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error)

	// Close releases any resources held by the store
	Close() error
}

// Expirer is implemented by stores that need an external sweep to remove
// documents past their TTL attribute.
type Expirer interface {
	PurgeExpired(ctx context.Context, t *Table, now time.Time) (int, error)
}
