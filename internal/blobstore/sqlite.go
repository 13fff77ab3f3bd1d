package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is where the SQLite store lives unless configured.
const DefaultSQLitePath = ".resim/cache.db"

// SQLite is a Store backed by a single SQLite file. It is meant to sit in a
// directory the CI workflow persists between runs.
type SQLite struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the store at path and applies
// pending migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	s := &SQLite{conn: conn, path: path, now: time.Now}
	if err := s.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN applies connection pragmas through the DSN so that every pooled
// connection gets them, not only the first.
func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)"
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *SQLite) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Entries},
		{2, migrationV2CreatedIndex},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Entries = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_files (
	key TEXT NOT NULL REFERENCES cache_entries(key) ON DELETE CASCADE,
	path TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (key, path)
);
`

const migrationV2CreatedIndex = `
CREATE INDEX IF NOT EXISTS idx_cache_entries_version_created
	ON cache_entries(version, created_at);
`

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, paths []string, key string) error {
	files, err := readFiles(paths)
	if err != nil {
		return fmt.Errorf("save cache %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM cache_entries WHERE key = ?", key).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("save cache %s: %w", key, ErrEntryExists)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check cache entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO cache_entries (key, version, created_at) VALUES (?, ?, ?)",
		key, Version(paths), s.now().UnixNano(),
	); err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	for p, data := range files {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cache_files (key, path, data) VALUES (?, ?, ?)",
			key, p, data,
		); err != nil {
			return fmt.Errorf("insert cache file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Restore implements Store.
func (s *SQLite) Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := Version(paths)
	for _, prefix := range prefixes(primaryKey, restoreKeys) {
		var key string
		err := s.conn.QueryRowContext(ctx, `
			SELECT key FROM cache_entries
			WHERE version = ? AND substr(key, 1, ?) = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1`,
			version, len(prefix), prefix,
		).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("find cache entry: %w", err)
		}

		files, err := s.files(ctx, key)
		if err != nil {
			return "", err
		}
		if err := writeFiles(files); err != nil {
			return "", fmt.Errorf("restore cache %s: %w", key, err)
		}
		return key, nil
	}
	return "", nil
}

func (s *SQLite) files(ctx context.Context, key string) (map[string][]byte, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT path, data FROM cache_files WHERE key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("query cache files: %w", err)
	}
	defer rows.Close()

	files := make(map[string][]byte)
	for rows.Next() {
		var p string
		var data []byte
		if err := rows.Scan(&p, &data); err != nil {
			return nil, fmt.Errorf("scan cache file: %w", err)
		}
		files[p] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache files: %w", err)
	}
	return files, nil
}

var _ Store = (*SQLite)(nil)
