// Package tokenstore persists the console's session token so an
// authenticated session survives process restart. Only the bearer token is
// ever stored; static API keys are never persisted by this layer.
package tokenstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const tokenKey = "session_token"

// Store is a small SQLite-backed key/value state store
type Store struct {
	conn *sql.DB
}

// Open opens (creating if needed) the state store at the given path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	store := &Store{conn: conn}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	// The token is a credential; keep the database file private
	if err := os.Chmod(path, 0600); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to restrict state store permissions: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS console_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Token returns the persisted session token, or "" when none is stored
func (s *Store) Token() (string, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM console_state WHERE key = ?", tokenKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return value, nil
}

// SaveToken stores the session token, replacing any previous one
func (s *Store) SaveToken(token string) error {
	query := `
		INSERT OR REPLACE INTO console_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`
	if _, err := s.conn.Exec(query, tokenKey, token); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// ClearToken removes the persisted session token; clearing an absent token
// is not an error
func (s *Store) ClearToken() error {
	if _, err := s.conn.Exec("DELETE FROM console_state WHERE key = ?", tokenKey); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.conn.Close()
}
