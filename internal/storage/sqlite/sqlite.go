// Package sqlite opens the default zero-config Store: a local database file
// through the pure-Go glebarez/sqlite driver, so no CGO is needed. Tables
// and repositories are the PostgreSQL backend's.
package sqlite

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"

	"github.com/jkaninda/huddle/internal/storage"
	pgstore "github.com/jkaninda/huddle/internal/storage/postgres"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path; its directory is created.
	JournalMode string // "wal" when empty.
}

func (c Config) dsn() string {
	mode := c.JournalMode
	if mode == "" {
		mode = "wal"
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode("+mode+")")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(ON)")
	return c.Path + "?" + q.Encode()
}

// Open creates a SQLite-backed Store. Call Migrate before use.
//
// The pool holds one connection: writers are serialized, so the conditional
// update behind MarkJoined cannot fail with SQLITE_BUSY.
func Open(cfg Config, log *slog.Logger) (storage.Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := pgstore.Connect(sqlite.Open(cfg.dsn()), pgstore.Pool{MaxOpen: 1}, log)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	log.Info("sqlite store opened", slog.String("path", cfg.Path))
	return pgstore.NewStore(db, storage.DriverSQLite), nil
}
