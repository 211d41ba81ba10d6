package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store on a SQLite database. The session lives in
// a two-row key/value table; Save replaces both rows in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

const (
	keyToken = "token"
	keyUser  = "user"
)

// OpenSQLite opens (and if needed creates) the session database at path.
// A database file SQLite cannot read is discarded and recreated empty:
// corrupt state means logged out, not a startup failure.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := openSessionDB(path)
	if isCorruptErr(err) {
		slog.Warn("session database unreadable, recreating", "path", path, "error", err)
		removeDatabaseFiles(path)
		db, err = openSessionDB(path)
	}
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func openSessionDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}

	return db, nil
}

// isCorruptErr reports whether err is SQLite telling us the file on disk
// is not (or is no longer) a database.
func isCorruptErr(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

// removeDatabaseFiles deletes the database along with its WAL and journal
// siblings so a fresh open starts from a clean slate.
func removeDatabaseFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		os.Remove(p)
	}
}

// Load reads both session rows. A missing or empty token row yields
// ErrNoSession, as does a database that turned unreadable after open.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM session_state WHERE key IN (?, ?)`, keyToken, keyUser)
	if err != nil {
		if isCorruptErr(err) {
			return State{}, ErrNoSession
		}
		return State{}, &StoreError{Op: "load", Err: err}
	}
	defer rows.Close()

	var state State
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return State{}, &StoreError{Op: "load", Key: key, Err: err}
		}
		switch key {
		case keyToken:
			state.Token = value
		case keyUser:
			state.UserJSON = []byte(value)
		}
	}
	if err := rows.Err(); err != nil {
		if isCorruptErr(err) {
			return State{}, ErrNoSession
		}
		return State{}, &StoreError{Op: "load", Err: err}
	}

	if state.Token == "" {
		return State{}, ErrNoSession
	}
	return state, nil
}

// Save upserts both rows in one transaction so the token is never stored
// without its user.
func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "save", Err: err}
	}

	upsert := `INSERT INTO session_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := tx.ExecContext(ctx, upsert, keyToken, state.Token); err != nil {
		tx.Rollback()
		return &StoreError{Op: "save", Key: keyToken, Err: err}
	}
	if _, err := tx.ExecContext(ctx, upsert, keyUser, string(state.UserJSON)); err != nil {
		tx.Rollback()
		return &StoreError{Op: "save", Key: keyUser, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}

// Clear deletes both session rows. Clearing an empty table is not an error.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_state WHERE key IN (?, ?)`, keyToken, keyUser); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
