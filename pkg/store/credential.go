package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"projectnav/pkg/keychain"
)

// Credential is the persisted, non-secret half of a vault entry. The
// secret bytes live in the OS keychain under Ref; only the reference is
// stored here.
type Credential struct {
	ID          int64        `json:"id"`
	ProjectID   *int64       `json:"project_id,omitempty"`
	ProjectName string       `json:"project_name,omitempty"`
	Category    string       `json:"category"`
	Label       string       `json:"label"`
	Username    string       `json:"username,omitempty"`
	Host        string       `json:"host,omitempty"`
	Port        int          `json:"port,omitempty"`
	Ref         keychain.Ref `json:"-"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// InsertCredential persists credential metadata and returns the stored
// row. The keychain entry under c.Ref must already exist; this ordering
// is enforced by the vault session, not here.
func (s *Store) InsertCredential(c *Credential) (*Credential, error) {
	if c.Category == "" || c.Label == "" {
		return nil, errors.New("store: credential category and label are required")
	}
	if c.Ref.Service == "" || c.Ref.Account == "" {
		return nil, errors.New("store: credential keychain reference is required")
	}

	res, err := s.db.Exec(`
		INSERT INTO credentials (project_id, category, label, username, host, port,
		                         keychain_service, keychain_account, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProjectID, c.Category, c.Label, nullString(c.Username), nullString(c.Host),
		nullInt(c.Port), c.Ref.Service, c.Ref.Account, nullString(c.Notes),
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to insert credential: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read credential id: %w", err)
	}
	return s.Credential(id)
}

// Credential returns the credential with the given id.
func (s *Store) Credential(id int64) (*Credential, error) {
	return s.scanCredential(s.db.QueryRow(`
		SELECT c.id, c.project_id, p.name, c.category, c.label, c.username,
		       c.host, c.port, c.keychain_service, c.keychain_account, c.notes, c.created_at
		FROM credentials c
		LEFT JOIN projects p ON c.project_id = p.id
		WHERE c.id = ?`, id))
}

// Credentials returns all credentials ordered by category then label,
// each annotated with its owning project's name where applicable.
func (s *Store) Credentials() ([]Credential, error) {
	return s.queryCredentials(`
		SELECT c.id, c.project_id, p.name, c.category, c.label, c.username,
		       c.host, c.port, c.keychain_service, c.keychain_account, c.notes, c.created_at
		FROM credentials c
		LEFT JOIN projects p ON c.project_id = p.id
		ORDER BY c.category, c.label`)
}

// CredentialsByProject returns the credentials attached to one project,
// ordered by category then label.
func (s *Store) CredentialsByProject(projectID int64) ([]Credential, error) {
	return s.queryCredentials(`
		SELECT c.id, c.project_id, p.name, c.category, c.label, c.username,
		       c.host, c.port, c.keychain_service, c.keychain_account, c.notes, c.created_at
		FROM credentials c
		LEFT JOIN projects p ON c.project_id = p.id
		WHERE c.project_id = ?
		ORDER BY c.category, c.label`, projectID)
}

// DeleteCredential removes the metadata row and reports whether a row
// was removed.
func (s *Store) DeleteCredential(id int64) (bool, error) {
	res, err := s.db.Exec("DELETE FROM credentials WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("store: failed to delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: failed to count affected rows: %w", err)
	}
	return n > 0, nil
}

// CredentialCount returns the number of stored credentials.
func (s *Store) CredentialCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM credentials").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: failed to count credentials: %w", err)
	}
	return n, nil
}

func (s *Store) queryCredentials(query string, args ...any) ([]Credential, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		c, err := s.scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate credentials: %w", err)
	}
	return creds, nil
}

func (s *Store) scanCredential(row rowScanner) (*Credential, error) {
	var (
		c                                  Credential
		projectID                          sql.NullInt64
		projectName, username, host, notes sql.NullString
		port                               sql.NullInt64
	)

	err := row.Scan(&c.ID, &projectID, &projectName, &c.Category, &c.Label,
		&username, &host, &port, &c.Ref.Service, &c.Ref.Account, &notes, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to scan credential: %w", err)
	}

	if projectID.Valid {
		id := projectID.Int64
		c.ProjectID = &id
	}
	c.ProjectName = projectName.String
	c.Username = username.String
	c.Host = host.String
	c.Port = int(port.Int64)
	c.Notes = notes.String
	return &c, nil
}

// nullInt maps 0 to NULL; port 0 is not a meaningful credential port.
func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
