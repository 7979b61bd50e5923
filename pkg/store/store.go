// Package store persists projectnav metadata in SQLite: the project
// catalog, credential attributes, and the master password record.
//
// Secret bytes never enter this package. Credentials carry only an
// opaque (keychain_service, keychain_account) reference into the OS
// keychain.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// File permissions for the database and its directory.
const (
	FileMode = 0600
	DirMode  = 0700
)

// Sentinel errors returned by store operations.
var (
	ErrNotInitialized     = errors.New("store: master password record does not exist")
	ErrAlreadyInitialized = errors.New("store: master password record already exists")
	ErrProjectNotFound    = errors.New("store: project not found")
	ErrCredentialNotFound = errors.New("store: credential not found")
	ErrLinkNotFound       = errors.New("store: project link not found")
)

// DefaultCategories seeds the credential category table on first open.
var DefaultCategories = []string{
	"RDP",
	"VPS",
	"Hosting",
	"API Keys",
	"Database",
	"External App",
}

// Store is a handle to the metadata database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the metadata database at path.
// The connection is limited to a single open conn: this is a local tool
// with one sequential caller, and it avoids "database is locked" errors.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("store: failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, FileMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to set database permissions: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// createTables creates the schema and seeds the category table.
func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			root_path TEXT NOT NULL,
			client TEXT,
			platform TEXT,
			tags_json TEXT NOT NULL DEFAULT '[]',
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_opened_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS project_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			url TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER REFERENCES projects(id) ON DELETE SET NULL,
			category TEXT NOT NULL,
			label TEXT NOT NULL,
			username TEXT,
			host TEXT,
			port INTEGER,
			keychain_service TEXT NOT NULL,
			keychain_account TEXT NOT NULL,
			notes TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_project
			ON credentials(project_id)`,
		`CREATE TABLE IF NOT EXISTS credential_categories (
			name TEXT PRIMARY KEY
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: failed to create schema: %w", err)
		}
	}

	for _, name := range DefaultCategories {
		if _, err := s.db.Exec(
			"INSERT OR IGNORE INTO credential_categories(name) VALUES(?)", name,
		); err != nil {
			return fmt.Errorf("store: failed to seed categories: %w", err)
		}
	}

	return nil
}

// Categories returns the known credential categories, sorted by name.
func (s *Store) Categories() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM credential_categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("store: failed to list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: failed to scan category: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate categories: %w", err)
	}
	return names, nil
}

const masterPasswordKey = "master_password_record"

// HasMasterPassword reports whether a master password record exists.
func (s *Store) HasMasterPassword() (bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM settings WHERE key = ?", masterPasswordKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: failed to read master password record: %w", err)
	}
	return true, nil
}

// MasterPasswordRecord returns the encoded master password record.
func (s *Store) MasterPasswordRecord() (string, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM settings WHERE key = ?", masterPasswordKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read master password record: %w", err)
	}
	return value, nil
}

// SetMasterPasswordRecord persists the encoded record. The insert is
// plain (not INSERT OR REPLACE): a second setup attempt must fail rather
// than silently overwrite the existing verifier.
func (s *Store) SetMasterPasswordRecord(encoded string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings(key, value) VALUES(?, ?)", masterPasswordKey, encoded,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("store: failed to write master password record: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a primary-key/unique
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
