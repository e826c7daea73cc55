package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shareit/internal/domain"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // goqu sqlite3 dialect
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	driverName = "sqlite3"
	memoryPath = ":memory:"
)

var dialect = goqu.Dialect(driverName)

// DB is the SQLite implementation of domain.Store.
type DB struct {
	*sqlx.DB
	path   string
	clock  domain.Clock
	logger *zerolog.Logger
}

var _ domain.Store = (*DB)(nil)

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open(driverName, path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory: shared.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, path: path, clock: domain.SystemClock{}, logger: logger}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}
	return db, nil
}

// SetClock replaces the clock used to stamp created and updated times.
func (db *DB) SetClock(clock domain.Clock) {
	db.clock = clock
}

func (db *DB) now() time.Time {
	return db.clock.Now().UTC()
}

// Path returns the file the database lives in.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			description TEXT NOT NULL,
			requestor_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			is_available BOOLEAN NOT NULL,
			owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			request_id INTEGER REFERENCES requests(id) ON DELETE SET NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE RESTRICT,
			booker_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
			status TEXT NOT NULL DEFAULT 'WAITING',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_request_id ON items(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_requestor_id ON requests(requestor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_booker_start ON bookings(booker_id, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_item_start ON bookings(item_id, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_item_id ON comments(item_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// notFound converts sql.ErrNoRows to domain.ErrNotFound and wraps anything else.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
