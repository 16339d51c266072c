// Package store keeps the history of cups runs and /process requests in a
// SQLite file. The schema is versioned with golang-migrate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for lookups of ids that were never stored.
var ErrNotFound = errors.New("not found")

// busyTimeout is how long a writer waits for the file lock held by another
// connection, such as a CLI query against a running server.
const busyTimeout = 5 * time.Second

// Store is an open history database.
type Store struct {
	db   *sql.DB
	path string
}

// New opens or creates the database at path and brings its schema up to date.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Writes are serialised on a single connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), busyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return s, nil
}

// dsn builds a modernc.org/sqlite connection string for path.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection to tests and ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}
