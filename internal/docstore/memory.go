// ABOUTME: In-memory Store implementation for tests and the "memory" driver
// ABOUTME: Keeps encoded bodies so reads behave exactly like the persistent backends

package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable // keyed by table name
	logger *slog.Logger
}

type memoryTable struct {
	docs    map[string]*record                     // keyed by primary key
	indexes map[string]map[string]map[string]bool // index name -> value -> primary keys
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Expirer = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*memoryTable),
		logger: slog.Default().With("component", "docstore", "driver", "memory"),
	}
}

// EnsureTables creates the given tables if they don't exist.
func (m *MemoryStore) EnsureTables(ctx context.Context, tables ...*Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, ok := m.tables[t.Name]; ok {
			continue
		}
		m.tables[t.Name] = &memoryTable{
			docs:    make(map[string]*record),
			indexes: make(map[string]map[string]map[string]bool),
		}
		m.logger.Debug("created table", "table", t.Name)
	}
	return nil
}

// Create stores a new document.
func (m *MemoryStore) Create(ctx context.Context, t *Table, item Item) (Item, error) {
	return m.write(ctx, t, item, true)
}

// Put stores a document, replacing any previous version.
func (m *MemoryStore) Put(ctx context.Context, t *Table, item Item) (Item, error) {
	return m.write(ctx, t, item, false)
}

func (m *MemoryStore) write(ctx context.Context, t *Table, item Item, create bool) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := prepare(t, item, create)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mt, err := m.table(t)
	if err != nil {
		return nil, err
	}

	pk := rec.primaryKey()
	if old, ok := mt.docs[pk]; ok {
		if create {
			return nil, ErrAlreadyExists
		}
		mt.unindex(pk, old)
	}
	mt.docs[pk] = rec
	mt.index(pk, rec)

	return readItem(t, rec.body)
}

// GetByHashKey retrieves a document from a hash-only table.
func (m *MemoryStore) GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error) {
	return m.get(ctx, t, primaryKey(hashKey, ""))
}

// GetByHashAndRangeKey retrieves a document by its composite key.
func (m *MemoryStore) GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	return m.get(ctx, t, primaryKey(hashKey, rangeKey))
}

func (m *MemoryStore) get(ctx context.Context, t *Table, pk string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mt, err := m.table(t)
	if err != nil {
		return nil, err
	}
	rec, ok := mt.docs[pk]
	if !ok {
		return nil, ErrNotFound
	}
	return readItem(t, rec.body)
}

// GetByIndex retrieves the first document whose indexed attribute equals value.
func (m *MemoryStore) GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.Index(indexName); !ok {
		return nil, fmt.Errorf("table %s has no index %q", t.Name, indexName)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	mt, err := m.table(t)
	if err != nil {
		return nil, err
	}
	keys := mt.indexes[indexName][value]
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	pks := make([]string, 0, len(keys))
	for pk := range keys {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	return readItem(t, mt.docs[pks[0]].body)
}

// PurgeExpired removes documents whose TTL attribute is at or before now.
func (m *MemoryStore) PurgeExpired(ctx context.Context, t *Table, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.TTLAttribute == "" {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mt, err := m.table(t)
	if err != nil {
		return 0, err
	}

	cutoff := now.Unix()
	purged := 0
	for pk, rec := range mt.docs {
		if rec.expires && rec.expiresAt <= cutoff {
			mt.unindex(pk, rec)
			delete(mt.docs, pk)
			purged++
		}
	}
	if purged > 0 {
		m.logger.Debug("purged expired documents", "table", t.Name, "count", purged)
	}
	return purged, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) table(t *Table) (*memoryTable, error) {
	if t == nil {
		return nil, fmt.Errorf("table is nil")
	}
	mt, ok := m.tables[t.Name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrTableNotFound)
	}
	return mt, nil
}

func (mt *memoryTable) index(pk string, rec *record) {
	for name, value := range rec.indexes {
		values, ok := mt.indexes[name]
		if !ok {
			values = make(map[string]map[string]bool)
			mt.indexes[name] = values
		}
		if values[value] == nil {
			values[value] = make(map[string]bool)
		}
		values[value][pk] = true
	}
}

func (mt *memoryTable) unindex(pk string, rec *record) {
	for name, value := range rec.indexes {
		keys := mt.indexes[name][value]
		delete(keys, pk)
		if len(keys) == 0 {
			delete(mt.indexes[name], value)
		}
	}
}
