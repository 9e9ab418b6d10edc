// ABOUTME: BoltDB implementation of the Store interface using go.etcd.io/bbolt
// ABOUTME: Each table is a bucket holding document, index and expiry sub-buckets

package docstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	tablesBucket = []byte("tables")
	docsBucket   = []byte("docs")
	idxBucket    = []byte("idx")
	ttlBucket    = []byte("ttl")
)

// BoltStore provides a BoltDB-backed document store.
type BoltStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

var (
	_ Store   = (*BoltStore)(nil)
	_ Expirer = (*BoltStore)(nil)
)

// NewBoltStore opens a BoltDB-backed store at the provided path.
func NewBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables bucket: %w", err)
	}

	logger := slog.Default().With("component", "docstore", "driver", "bolt")
	logger.Info("bolt store initialized", "path", cleanPath)
	return &BoltStore{db: db, logger: logger}, nil
}

// EnsureTables creates the buckets for the given tables if they don't exist.
func (s *BoltStore) EnsureTables(ctx context.Context, tables ...*Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(tablesBucket)
		for _, t := range tables {
			b, err := root.CreateBucketIfNotExists([]byte(t.Name))
			if err != nil {
				return fmt.Errorf("create %s bucket: %w", t.Name, err)
			}
			for _, name := range [][]byte{docsBucket, idxBucket, ttlBucket} {
				if _, err := b.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create %s/%s bucket: %w", t.Name, name, err)
				}
			}
		}
		return nil
	})
}

// boltTable groups the sub-buckets of one table inside a transaction.
type boltTable struct {
	docs *bbolt.Bucket
	idx  *bbolt.Bucket
	ttl  *bbolt.Bucket
}

func tableBuckets(tx *bbolt.Tx, t *Table) (*boltTable, error) {
	if t == nil {
		return nil, fmt.Errorf("table is nil")
	}
	b := tx.Bucket(tablesBucket).Bucket([]byte(t.Name))
	if b == nil {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrTableNotFound)
	}
	return &boltTable{
		docs: b.Bucket(docsBucket),
		idx:  b.Bucket(idxBucket),
		ttl:  b.Bucket(ttlBucket),
	}, nil
}

// Create stores a new document.
func (s *BoltStore) Create(ctx context.Context, t *Table, item Item) (Item, error) {
	return s.write(ctx, t, item, true)
}

// Put stores a document, replacing any previous version.
func (s *BoltStore) Put(ctx context.Context, t *Table, item Item) (Item, error) {
	return s.write(ctx, t, item, false)
}

func (s *BoltStore) write(ctx context.Context, t *Table, item Item, create bool) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := prepare(t, item, create)
	if err != nil {
		return nil, err
	}

	pk := []byte(rec.primaryKey())
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bt, err := tableBuckets(tx, t)
		if err != nil {
			return err
		}

		if existing := bt.docs.Get(pk); existing != nil {
			if create {
				return ErrAlreadyExists
			}
			old, err := readRecord(t, existing)
			if err != nil {
				return err
			}
			if err := bt.remove(old); err != nil {
				return err
			}
		}
		return bt.insert(rec)
	})
	if err != nil {
		return nil, err
	}
	return readItem(t, rec.body)
}

func (bt *boltTable) insert(rec *record) error {
	pk := rec.primaryKey()
	if err := bt.docs.Put([]byte(pk), rec.body); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	for name, value := range rec.indexes {
		if err := bt.idx.Put(indexKey(name, value, pk), nil); err != nil {
			return fmt.Errorf("put index entry: %w", err)
		}
	}
	if rec.expires {
		if err := bt.ttl.Put(ttlKey(rec.expiresAt, pk), nil); err != nil {
			return fmt.Errorf("put expiry entry: %w", err)
		}
	}
	return nil
}

func (bt *boltTable) remove(rec *record) error {
	pk := rec.primaryKey()
	for name, value := range rec.indexes {
		if err := bt.idx.Delete(indexKey(name, value, pk)); err != nil {
			return fmt.Errorf("delete index entry: %w", err)
		}
	}
	if rec.expires {
		if err := bt.ttl.Delete(ttlKey(rec.expiresAt, pk)); err != nil {
			return fmt.Errorf("delete expiry entry: %w", err)
		}
	}
	return bt.docs.Delete([]byte(pk))
}

// GetByHashKey retrieves a document from a hash-only table.
func (s *BoltStore) GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error) {
	return s.get(ctx, t, primaryKey(hashKey, ""))
}

// GetByHashAndRangeKey retrieves a document by its composite key.
func (s *BoltStore) GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	return s.get(ctx, t, primaryKey(hashKey, rangeKey))
}

func (s *BoltStore) get(ctx context.Context, t *Table, pk string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bt, err := tableBuckets(tx, t)
		if err != nil {
			return err
		}
		payload := bt.docs.Get([]byte(pk))
		if payload == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction.
		body = bytes.Clone(payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return readItem(t, body)
}

// GetByIndex retrieves the first document whose indexed attribute equals value.
func (s *BoltStore) GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.Index(indexName); !ok {
		return nil, fmt.Errorf("table %s has no index %q", t.Name, indexName)
	}

	var body []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bt, err := tableBuckets(tx, t)
		if err != nil {
			return err
		}
		prefix := indexPrefix(indexName, value)
		k, _ := bt.idx.Cursor().Seek(prefix)
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return ErrNotFound
		}
		payload := bt.docs.Get(k[len(prefix):])
		if payload == nil {
			return ErrNotFound
		}
		body = bytes.Clone(payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return readItem(t, body)
}

// PurgeExpired removes documents whose TTL attribute is at or before now.
func (s *BoltStore) PurgeExpired(ctx context.Context, t *Table, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.TTLAttribute == "" {
		return 0, nil
	}

	cutoff := now.Unix()
	purged := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bt, err := tableBuckets(tx, t)
		if err != nil {
			return err
		}

		// Collect first; deleting while a cursor walks the bucket skips keys.
		var expired [][]byte
		c := bt.ttl.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if decodeTTL(k) > cutoff {
				break
			}
			expired = append(expired, bytes.Clone(k[8:]))
		}

		for _, pk := range expired {
			payload := bt.docs.Get(pk)
			if payload == nil {
				continue
			}
			old, err := readRecord(t, payload)
			if err != nil {
				return err
			}
			if err := bt.remove(old); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Debug("purged expired documents", "table", t.Name, "count", purged)
	}
	return purged, nil
}

// Close closes the underlying BoltDB database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func indexPrefix(name, value string) []byte {
	return []byte(name + "\x00" + value + "\x00")
}

func indexKey(name, value, pk string) []byte {
	return append(indexPrefix(name, value), pk...)
}

// ttlKey orders entries by expiry. The sign bit is flipped so negative
// timestamps sort before positive ones.
func ttlKey(expiresAt int64, pk string) []byte {
	key := make([]byte, 8, 8+len(pk))
	binary.BigEndian.PutUint64(key, uint64(expiresAt)^(1<<63))
	return append(key, pk...)
}

func decodeTTL(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[:8]) ^ (1 << 63))
}

