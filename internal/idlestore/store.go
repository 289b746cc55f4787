// Package idlestore persists the API Gateway's idle-override flags: one
// boolean record per turbine ID recording whether an operator has
// administratively disabled it. Grounded on the Tutu-Engine-tutuengine
// internal/infra/sqlite package's pure-Go, CGo-free modernc.org/sqlite
// usage, the closest ecosystem analogue to the original prototype's
// sqlitedict.
package idlestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection holding the idle_overrides table.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories
// as needed and running the (idempotent) schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("idlestore: create dir %q: %w", dir, err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("idlestore: open %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("idlestore: ping %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS idle_overrides (
		turbine_id TEXT PRIMARY KEY,
		disabled   BOOLEAN NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("idlestore: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SetDisabled records turbineID's administrative disable flag.
func (s *Store) SetDisabled(turbineID string, disabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO idle_overrides (turbine_id, disabled) VALUES (?, ?)
		 ON CONFLICT(turbine_id) DO UPDATE SET disabled=excluded.disabled`,
		turbineID, disabled,
	)
	if err != nil {
		return fmt.Errorf("idlestore: set %q: %w", turbineID, err)
	}
	return nil
}

// IsDisabled reports whether turbineID has been administratively disabled.
// A turbine never written defaults to false (not disabled).
func (s *Store) IsDisabled(turbineID string) (bool, error) {
	var disabled bool
	err := s.db.QueryRow(`SELECT disabled FROM idle_overrides WHERE turbine_id = ?`, turbineID).Scan(&disabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idlestore: get %q: %w", turbineID, err)
	}
	return disabled, nil
}
