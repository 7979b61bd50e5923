package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Project is a cataloged folder on disk.
type Project struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	RootPath     string     `json:"root_path"`
	Client       string     `json:"client,omitempty"`
	Platform     string     `json:"platform,omitempty"`
	Tags         []string   `json:"tags"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastOpenedAt *time.Time `json:"last_opened_at,omitempty"`
	Links        []Link     `json:"links,omitempty"`
}

// Link is a labeled URL attached to a project.
type Link struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Label     string `json:"label"`
	URL       string `json:"url"`
}

// CreateProject inserts a project and returns it with its assigned id.
func (s *Store) CreateProject(p *Project) (*Project, error) {
	if p.Name == "" || p.RootPath == "" {
		return nil, errors.New("store: project name and root path are required")
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode tags: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO projects (name, root_path, client, platform, tags_json, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.RootPath, nullString(p.Client), nullString(p.Platform),
		string(tagsJSON), nullString(p.Notes), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read project id: %w", err)
	}
	return s.Project(id)
}

// Project returns the project with the given id, including its links.
func (s *Store) Project(id int64) (*Project, error) {
	p, err := s.scanProject(s.db.QueryRow(`
		SELECT id, name, root_path, client, platform, tags_json, notes,
		       created_at, updated_at, last_opened_at
		FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	links, err := s.ProjectLinks(id)
	if err != nil {
		return nil, err
	}
	p.Links = links
	return p, nil
}

// Projects returns all projects ordered by last-opened (most recent
// first, never-opened last), then creation time descending.
func (s *Store) Projects() ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT id, name, root_path, client, platform, tags_json, notes,
		       created_at, updated_at, last_opened_at
		FROM projects
		ORDER BY
			CASE WHEN last_opened_at IS NULL THEN 1 ELSE 0 END,
			last_opened_at DESC,
			created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate projects: %w", err)
	}
	return projects, nil
}

// UpdateProject replaces the mutable fields of a project.
func (s *Store) UpdateProject(p *Project) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("store: failed to encode tags: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE projects
		SET name = ?, root_path = ?, client = ?, platform = ?, tags_json = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.RootPath, nullString(p.Client), nullString(p.Platform),
		string(tagsJSON), nullString(p.Notes), time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("store: failed to update project: %w", err)
	}
	return requireRow(res, ErrProjectNotFound)
}

// TouchProjectOpened records that the project was just opened.
func (s *Store) TouchProjectOpened(id int64) error {
	res, err := s.db.Exec(
		"UPDATE projects SET last_opened_at = ? WHERE id = ?", time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("store: failed to touch project: %w", err)
	}
	return requireRow(res, ErrProjectNotFound)
}

// DeleteProject removes the project row. Attached links cascade; the
// caller is responsible for having removed the project's credentials
// through the vault first (keychain entries cannot cascade from here).
func (s *Store) DeleteProject(id int64) error {
	res, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: failed to delete project: %w", err)
	}
	return requireRow(res, ErrProjectNotFound)
}

// AddProjectLink attaches a labeled URL to a project.
func (s *Store) AddProjectLink(projectID int64, label, url string) (*Link, error) {
	res, err := s.db.Exec(
		"INSERT INTO project_links (project_id, label, url) VALUES (?, ?, ?)",
		projectID, label, url,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to insert link: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read link id: %w", err)
	}
	return &Link{ID: id, ProjectID: projectID, Label: label, URL: url}, nil
}

// RemoveProjectLink deletes a link by its id.
func (s *Store) RemoveProjectLink(linkID int64) error {
	res, err := s.db.Exec("DELETE FROM project_links WHERE id = ?", linkID)
	if err != nil {
		return fmt.Errorf("store: failed to delete link: %w", err)
	}
	return requireRow(res, ErrLinkNotFound)
}

// ProjectLinks returns the links attached to a project.
func (s *Store) ProjectLinks(projectID int64) ([]Link, error) {
	rows, err := s.db.Query(
		"SELECT id, project_id, label, url FROM project_links WHERE project_id = ? ORDER BY id",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Label, &l.URL); err != nil {
			return nil, fmt.Errorf("store: failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate links: %w", err)
	}
	return links, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProject(row rowScanner) (*Project, error) {
	var (
		p                       Project
		client, platform, notes sql.NullString
		tagsJSON                string
		lastOpened              sql.NullTime
	)

	err := row.Scan(&p.ID, &p.Name, &p.RootPath, &client, &platform,
		&tagsJSON, &notes, &p.CreatedAt, &p.UpdatedAt, &lastOpened)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to scan project: %w", err)
	}

	p.Client = client.String
	p.Platform = platform.String
	p.Notes = notes.String
	if lastOpened.Valid {
		t := lastOpened.Time
		p.LastOpenedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return nil, fmt.Errorf("store: failed to decode tags: %w", err)
	}
	return &p, nil
}

// nullString maps "" to NULL so empty optionals stay NULL in the schema.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireRow converts a zero-row update/delete into notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to count affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
