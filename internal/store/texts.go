package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveText upserts a document's master text. A nil text stores SQL NULL,
// the nullify state.
func (s *Store) SaveText(name string, text *string, lastModified time.Time) error {
	_, err := s.db.Exec(`INSERT INTO texts (name, content, last_modified)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			last_modified = excluded.last_modified`,
		name, text, lastModified.UTC())
	if err != nil {
		return fmt.Errorf("save text %q: %w", name, err)
	}
	return nil
}

func (s *Store) LoadText(name string) (text *string, lastModified time.Time, found bool, err error) {
	err = s.db.QueryRow(`SELECT content, last_modified FROM texts WHERE name = ?`, name).Scan(&text, &lastModified)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load text %q: %w", name, err)
	}
	return text, lastModified, true, nil
}

func (s *Store) DeleteText(name string) error {
	if _, err := s.db.Exec(`DELETE FROM texts WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete text %q: %w", name, err)
	}
	return nil
}

func (s *Store) ListTextNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM texts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list texts: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan text name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
