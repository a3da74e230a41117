// Package sqlite implements the repository interfaces on an embedded SQLite
// database. It is the alternate backend, selected by setting DB_PATH — use
// ":memory:" for an ephemeral database with the same lifetime as the default
// memory store, or a file path for state that survives restarts.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C
// compiler installed and cross-compilation becomes painful. modernc.org/sqlite
// is a pure Go translation of the SQLite C code — no C compiler needed,
// works everywhere Go works.
//
// BEHAVIOURAL CONTRACT:
// This backend must be observably identical to repository/memory: monotonic
// never-reused ids (AUTOINCREMENT), insertion-order listings (ORDER BY id),
// the same filter order, and stable sorting (a secondary id key stands in
// for the memory store's stable sort). The repository tests assert the same
// properties against both.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import is "side-effect only": the sqlite package's
	// init() registers itself with database/sql as a driver named "sqlite".
	// After this import, sql.Open("sqlite", ...) knows how to talk to SQLite.
	_ "modernc.org/sqlite"

	"github.com/sakif/marketplace-api/internal/repository"
)

var (
	_ repository.UserRepository = (*UserDB)(nil)
	_ repository.ItemRepository = (*ItemDB)(nil)
)

// DB wraps a sql.DB connection pool. The server owns the lifecycle: New
// creates it, Close releases it during graceful shutdown.
//
// DB itself implements neither repository interface — both declare
// Create/GetByID/Count, and one receiver type cannot carry two methods with
// the same name. The Users() and Items() views split the method sets over
// the shared connection, same as the memory backend's Store.
type DB struct {
	conn *sql.DB
}

// UserDB is the repository.UserRepository view over a DB.
type UserDB struct {
	db *DB
}

// Users returns the user view. Views are stateless, so repeated calls are
// equivalent.
func (db *DB) Users() *UserDB {
	return &UserDB{db: db}
}

// ItemDB is the repository.ItemRepository view over a DB.
type ItemDB struct {
	db *DB
}

// Items returns the item view over the same connection.
func (db *DB) Items() *ItemDB {
	return &ItemDB{db: db}
}

// New opens the database at path (":memory:" or a file) and creates the
// schema if needed.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open doesn't actually connect — it just creates a pool manager.
	// Ping forces an immediate connection so a bad path surfaces here
	// rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// An in-memory SQLite database exists per connection; with a pool of
	// many connections each would see its own empty database. Clamp the
	// pool to one connection so every query shares the same state. This
	// also serialises all access, matching the memory store's single mutex.
	conn.SetMaxOpenConns(1)

	// Write-Ahead Logging lets reads proceed during writes. Irrelevant for
	// :memory: but it costs nothing there.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this wherever New
// is called so the connection is cleaned up even if a panic occurs.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent, so
// this is safe to run on every start.
//
// AUTOINCREMENT (as opposed to plain INTEGER PRIMARY KEY) guarantees SQLite
// never reuses a deleted row's id — the same monotonic-counter behaviour the
// memory store implements by hand.
//
// owner_id is deliberately NOT a foreign key: the owner reference is
// validated at creation time by the service (the creator is always a live,
// authenticated user) and never re-checked, matching the memory backend.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price       REAL NOT NULL,
			category    TEXT NOT NULL,
			owner_id    INTEGER NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id);
		CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);
	`)
	if err != nil {
		return fmt.Errorf("creating items table: %w", err)
	}

	return nil
}
