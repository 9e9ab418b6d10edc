// ABOUTME: Redis implementation of the Store interface using go-redis
// ABOUTME: Documents are JSON strings, indexes are sorted sets, TTLs ride on SET EXAT

package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis server. Expired documents are
// removed by Redis itself, so RedisStore does not implement Expirer.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]bool
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. The store owns client and
// closes it on Close.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authstore:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "docstore", "driver", "redis"),
		tables: make(map[string]bool),
	}
}

func (s *RedisStore) tablesKey() string {
	return s.prefix + "tables"
}

func (s *RedisStore) docKey(table, hashKey, rangeKey string) string {
	return s.prefix + "doc:" + table + ":" + url.QueryEscape(hashKey) + ":" + url.QueryEscape(rangeKey)
}

func (s *RedisStore) indexKey(table, index, value string) string {
	return s.prefix + "idx:" + table + ":" + index + ":" + url.QueryEscape(value)
}

// docKeyForMember maps an index member back to the document key.
func (s *RedisStore) docKeyForMember(table, member string) string {
	hashKey, rangeKey, _ := strings.Cut(member, "\x00")
	return s.docKey(table, hashKey, rangeKey)
}

// EnsureTables registers the given tables if they don't exist.
func (s *RedisStore) EnsureTables(ctx context.Context, tables ...*Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if err := s.client.SAdd(ctx, s.tablesKey(), t.Name).Err(); err != nil {
			return fmt.Errorf("redis docstore: register table %s failed: %w", t.Name, err)
		}
		s.mu.Lock()
		s.tables[t.Name] = true
		s.mu.Unlock()
		s.logger.Debug("ensured table", "table", t.Name)
	}
	return nil
}

func (s *RedisStore) checkTable(ctx context.Context, t *Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}

	s.mu.RLock()
	known := s.tables[t.Name]
	s.mu.RUnlock()
	if known {
		return nil
	}

	ok, err := s.client.SIsMember(ctx, s.tablesKey(), t.Name).Result()
	if err != nil {
		return fmt.Errorf("redis docstore: look up table %s failed: %w", t.Name, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", t.Name, ErrTableNotFound)
	}

	s.mu.Lock()
	s.tables[t.Name] = true
	s.mu.Unlock()
	return nil
}

// Create stores a new document.
func (s *RedisStore) Create(ctx context.Context, t *Table, item Item) (Item, error) {
	rec, err := prepare(t, item, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}

	key := s.docKey(t.Name, rec.hashKey, rec.rangeKey)
	err = s.client.SetArgs(ctx, key, rec.body, redis.SetArgs{Mode: "NX", ExpireAt: expireAt(rec)}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("redis docstore: create failed: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueIndexes(ctx, pipe, t, rec)
		return nil
	})
	if err != nil {
		// Drop the unindexed document so the create can be retried.
		if delErr := s.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			s.logger.Error("failed to remove unindexed document", "table", t.Name, "error", delErr)
		}
		return nil, fmt.Errorf("redis docstore: index document failed: %w", err)
	}
	return readItem(t, rec.body)
}

// expireAt is the EXAT argument for rec, zero when it has no TTL value.
func expireAt(rec *record) time.Time {
	if !rec.expires {
		return time.Time{}
	}
	// EXAT rejects values below 1; any past second expires the key at once.
	return unixTime(max(rec.expiresAt, 1))
}

// Put stores a document, replacing any previous version.
func (s *RedisStore) Put(ctx context.Context, t *Table, item Item) (Item, error) {
	rec, err := prepare(t, item, false)
	if err != nil {
		return nil, err
	}
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}

	key := s.docKey(t.Name, rec.hashKey, rec.rangeKey)
	var old *record
	existing, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("redis docstore: read previous version failed: %w", err)
	default:
		if old, err = readRecord(t, existing); err != nil {
			return nil, err
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old != nil {
			member := old.primaryKey()
			for name, value := range old.indexes {
				if rec.indexes[name] != value {
					pipe.ZRem(ctx, s.indexKey(t.Name, name, value), member)
				}
			}
		}
		// A plain SET clears any previous expiry.
		pipe.SetArgs(ctx, key, rec.body, redis.SetArgs{ExpireAt: expireAt(rec)})
		s.queueIndexes(ctx, pipe, t, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis docstore: put failed: %w", err)
	}
	return readItem(t, rec.body)
}

func (s *RedisStore) queueIndexes(ctx context.Context, pipe redis.Pipeliner, t *Table, rec *record) {
	member := rec.primaryKey()
	for name, value := range rec.indexes {
		// Equal scores make ZRANGE order members lexically.
		pipe.ZAdd(ctx, s.indexKey(t.Name, name, value), redis.Z{Score: 0, Member: member})
	}
}

// GetByHashKey retrieves a document from a hash-only table.
func (s *RedisStore) GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error) {
	return s.get(ctx, t, s.docKey(t.Name, hashKey, ""))
}

// GetByHashAndRangeKey retrieves a document by its composite key.
func (s *RedisStore) GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	return s.get(ctx, t, s.docKey(t.Name, hashKey, rangeKey))
}

func (s *RedisStore) get(ctx context.Context, t *Table, key string) (Item, error) {
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis docstore: get failed: %w", err)
	}
	return readItem(t, body)
}

// GetByIndex retrieves the first document whose indexed attribute equals value.
// Members whose document has expired are dropped from the index as they are found.
func (s *RedisStore) GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error) {
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}
	idx, ok := t.Index(indexName)
	if !ok {
		return nil, fmt.Errorf("table %s has no index %q", t.Name, indexName)
	}

	idxKey := s.indexKey(t.Name, indexName, value)
	members, err := s.client.ZRange(ctx, idxKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis docstore: read index failed: %w", err)
	}

	for _, member := range members {
		body, err := s.client.Get(ctx, s.docKeyForMember(t.Name, member)).Bytes()
		if errors.Is(err, redis.Nil) {
			if err := s.client.ZRem(ctx, idxKey, member).Err(); err != nil {
				s.logger.Warn("failed to drop stale index member", "table", t.Name, "index", indexName, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis docstore: get failed: %w", err)
		}
		item, err := readItem(t, body)
		if err != nil {
			return nil, err
		}
		// The document may have been re-indexed since ZRANGE ran.
		if current, _ := item.String(idx.HashKey); current != value {
			continue
		}
		return item, nil
	}
	return nil, ErrNotFound
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
