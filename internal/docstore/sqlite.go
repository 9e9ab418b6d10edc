// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Schema is managed by golang-migrate from embedded migration files

package docstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]bool // tables known to exist
}

var (
	_ Store   = (*SQLiteStore)(nil)
	_ Expirer = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store at the given path.
// Migrations are applied automatically and parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "docstore", "driver", "sqlite")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return &SQLiteStore{
		db:     db,
		logger: logger,
		tables: make(map[string]bool),
	}, nil
}

// runMigrations applies the embedded migrations. The migrate instance is not
// closed because that would close db as well.
func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// EnsureTables registers the given tables if they don't exist.
func (s *SQLiteStore) EnsureTables(ctx context.Context, tables ...*Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO document_tables (name, hash_key, range_key, created_at)
			VALUES (?, ?, ?, ?)
		`, t.Name, t.HashKey, t.RangeKey, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("registering table %s: %w", t.Name, err)
		}

		s.mu.Lock()
		s.tables[t.Name] = true
		s.mu.Unlock()
		s.logger.Debug("ensured table", "table", t.Name)
	}
	return nil
}

// checkTable returns ErrTableNotFound unless t was registered.
func (s *SQLiteStore) checkTable(ctx context.Context, t *Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}

	s.mu.RLock()
	known := s.tables[t.Name]
	s.mu.RUnlock()
	if known {
		return nil
	}

	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM document_tables WHERE name = ?`, t.Name).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", t.Name, ErrTableNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up table %s: %w", t.Name, err)
	}

	s.mu.Lock()
	s.tables[t.Name] = true
	s.mu.Unlock()
	return nil
}

// Create stores a new document.
func (s *SQLiteStore) Create(ctx context.Context, t *Table, item Item) (Item, error) {
	return s.write(ctx, t, item, true)
}

// Put stores a document, replacing any previous version.
func (s *SQLiteStore) Put(ctx context.Context, t *Table, item Item) (Item, error) {
	return s.write(ctx, t, item, false)
}

func (s *SQLiteStore) write(ctx context.Context, t *Table, item Item, create bool) (Item, error) {
	rec, err := prepare(t, item, create)
	if err != nil {
		return nil, err
	}
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}

	var expiresAt sql.NullInt64
	if rec.expires {
		expiresAt = sql.NullInt64{Int64: rec.expiresAt, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if create {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (table_name, hash_key, range_key, body, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.Name, rec.hashKey, rec.rangeKey, string(rec.body), expiresAt, now)
		if err != nil {
			if isConstraintViolation(err) {
				return nil, ErrAlreadyExists
			}
			return nil, fmt.Errorf("inserting document: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (table_name, hash_key, range_key, body, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(table_name, hash_key, range_key) DO UPDATE SET
				body = excluded.body,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at
		`, t.Name, rec.hashKey, rec.rangeKey, string(rec.body), expiresAt, now)
		if err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM document_indexes
			WHERE table_name = ? AND hash_key = ? AND range_key = ?
		`, t.Name, rec.hashKey, rec.rangeKey)
		if err != nil {
			return nil, fmt.Errorf("clearing index entries: %w", err)
		}
	}

	for name, value := range rec.indexes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_indexes (table_name, index_name, index_value, hash_key, range_key)
			VALUES (?, ?, ?, ?, ?)
		`, t.Name, name, value, rec.hashKey, rec.rangeKey)
		if err != nil {
			return nil, fmt.Errorf("inserting index entry %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("wrote document", "table", t.Name, "hash_key", rec.hashKey, "create", create)
	return readItem(t, rec.body)
}

// GetByHashKey retrieves a document from a hash-only table.
func (s *SQLiteStore) GetByHashKey(ctx context.Context, t *Table, hashKey string) (Item, error) {
	return s.get(ctx, t, hashKey, "")
}

// GetByHashAndRangeKey retrieves a document by its composite key.
func (s *SQLiteStore) GetByHashAndRangeKey(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	return s.get(ctx, t, hashKey, rangeKey)
}

func (s *SQLiteStore) get(ctx context.Context, t *Table, hashKey, rangeKey string) (Item, error) {
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM documents
		WHERE table_name = ? AND hash_key = ? AND range_key = ?
	`, t.Name, hashKey, rangeKey).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return readItem(t, []byte(body))
}

// GetByIndex retrieves the first document whose indexed attribute equals value.
func (s *SQLiteStore) GetByIndex(ctx context.Context, t *Table, indexName, value string) (Item, error) {
	if err := s.checkTable(ctx, t); err != nil {
		return nil, err
	}
	if _, ok := t.Index(indexName); !ok {
		return nil, fmt.Errorf("table %s has no index %q", t.Name, indexName)
	}

	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT d.body
		FROM document_indexes i
		JOIN documents d
			ON d.table_name = i.table_name AND d.hash_key = i.hash_key AND d.range_key = i.range_key
		WHERE i.table_name = ? AND i.index_name = ? AND i.index_value = ?
		ORDER BY i.hash_key, i.range_key
		LIMIT 1
	`, t.Name, indexName, value).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying index %s: %w", indexName, err)
	}
	return readItem(t, []byte(body))
}

// PurgeExpired removes documents whose TTL attribute is at or before now.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, t *Table, now time.Time) (int, error) {
	if t.TTLAttribute == "" {
		return 0, nil
	}
	if err := s.checkTable(ctx, t); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := now.Unix()
	_, err = tx.ExecContext(ctx, `
		DELETE FROM document_indexes
		WHERE table_name = ? AND EXISTS (
			SELECT 1 FROM documents d
			WHERE d.table_name = document_indexes.table_name
				AND d.hash_key = document_indexes.hash_key
				AND d.range_key = document_indexes.range_key
				AND d.expires_at IS NOT NULL AND d.expires_at <= ?
		)
	`, t.Name, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired index entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM documents
		WHERE table_name = ? AND expires_at IS NOT NULL AND expires_at <= ?
	`, t.Name, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Debug("purged expired documents", "table", t.Name, "count", n)
	}
	return int(n), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}
