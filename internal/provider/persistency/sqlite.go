package persistency

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Pure Go SQLite driver (no CGO, easier cross-compilation).
	_ "modernc.org/sqlite"
)

// SQLite is a storage-backed Persistency using a single local file, in
// WAL mode, with one table: cached_parameter_sets(name, json, updated_at).
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
	mu     sync.Mutex
}

// NewSQLite opens (creating if necessary) a SQLite-backed Persistency
// at path. Parent directories are created mode 0700; the database file
// is chmod'd to 0600 after creation (best-effort, logged on failure).
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid path contains '..': %s", path)
	}
	forbiddenPrefixes := []string{"/etc", "/sys", "/proc", "/dev"}
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil, fmt.Errorf("forbidden path prefix %s: %s", prefix, path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	s := &SQLite{db: db, logger: logger, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("failed to set sqlite file permissions to 0600", "path", path, "error", err)
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS cached_parameter_sets (
	name       TEXT PRIMARY KEY,
	json       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SQLite) ReadCachedParameterSets(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name, json FROM cached_parameter_sets`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached parameter sets: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.JSON); err != nil {
			return nil, fmt.Errorf("failed to scan cached parameter set row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) CacheParameterSet(ctx context.Context, entry Entry, sync bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO cached_parameter_sets (name, json, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET json = excluded.json, updated_at = excluded.updated_at
`, entry.Name, entry.JSON, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to cache parameter set %s: %w", entry.Name, err)
	}
	if sync {
		_, err = s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`)
	}
	return err
}

func (s *SQLite) SyncToStorage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`)
	return err
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
