// Package storage persists the contact bot's cache, tokens and lookups in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/quantumlife/contactbot/internal/core"
)

// ErrNotFound is returned when a keyed row does not exist
var ErrNotFound = core.ErrRecordNotFound

const memoryPath = ":memory:"

// Config selects the database file. InMemory wins over Path.
type Config struct {
	Path     string
	InMemory bool
}

// DB is the bot's single SQLite handle
type DB struct {
	conn *sql.DB
	path string
}

// Open creates the parent directory when needed and opens the database
// with WAL and a busy timeout applied on every connection.
func Open(cfg Config) (*DB, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = memoryPath
	} else if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// an in-memory database lives only as long as its one connection
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if path != memoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return path + "?" + q.Encode()
}

// OpenMigrated opens the database and applies pending migrations
func OpenMigrated(cfg Config) (*DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path is the database file, or ":memory:"
func (db *DB) Path() string { return db.path }

// InMemory reports whether nothing is written to disk
func (db *DB) InMemory() bool { return db.path == memoryPath }

// Conn exposes the handle for ad hoc queries
func (db *DB) Conn() *sql.DB { return db.conn }

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
