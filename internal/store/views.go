package store

import (
	"database/sql"
	"fmt"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

func (s *Store) SaveView(rec sync.ViewRecord) error {
	_, err := s.db.Exec(`INSERT INTO views (
			username, filename, shadow, backup_shadow,
			shadow_client_version, shadow_server_version, backup_shadow_server_version,
			edit_stack, last_touched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username, filename) DO UPDATE SET
			shadow = excluded.shadow,
			backup_shadow = excluded.backup_shadow,
			shadow_client_version = excluded.shadow_client_version,
			shadow_server_version = excluded.shadow_server_version,
			backup_shadow_server_version = excluded.backup_shadow_server_version,
			edit_stack = excluded.edit_stack,
			last_touched = excluded.last_touched`,
		rec.Username, rec.Filename, rec.Shadow, rec.BackupShadow,
		rec.ShadowClientVersion, rec.ShadowServerVersion, rec.BackupShadowServerVersion,
		encodeEditStack(rec.EditStack), rec.LastTouched.UTC())
	if err != nil {
		return fmt.Errorf("save view %s/%s: %w", rec.Username, rec.Filename, err)
	}
	return nil
}

func (s *Store) LoadView(username, filename string) (sync.ViewRecord, bool, error) {
	var rec sync.ViewRecord
	var editStackRaw string
	err := s.db.QueryRow(`SELECT username, filename, shadow, backup_shadow,
			shadow_client_version, shadow_server_version, backup_shadow_server_version,
			edit_stack, last_touched
		FROM views WHERE username = ? AND filename = ?`, username, filename).Scan(
		&rec.Username, &rec.Filename, &rec.Shadow, &rec.BackupShadow,
		&rec.ShadowClientVersion, &rec.ShadowServerVersion, &rec.BackupShadowServerVersion,
		&editStackRaw, &rec.LastTouched)
	if err == sql.ErrNoRows {
		return sync.ViewRecord{}, false, nil
	}
	if err != nil {
		return sync.ViewRecord{}, false, fmt.Errorf("load view %s/%s: %w", username, filename, err)
	}
	stack, err := decodeEditStack(editStackRaw)
	if err != nil {
		return sync.ViewRecord{}, false, fmt.Errorf("load view %s/%s: %w", username, filename, err)
	}
	rec.EditStack = stack
	return rec, true, nil
}

func (s *Store) DeleteView(username, filename string) error {
	if _, err := s.db.Exec(`DELETE FROM views WHERE username = ? AND filename = ?`, username, filename); err != nil {
		return fmt.Errorf("delete view %s/%s: %w", username, filename, err)
	}
	return nil
}

func (s *Store) ListViewKeys() ([][2]string, error) {
	rows, err := s.db.Query(`SELECT username, filename FROM views ORDER BY username, filename`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()
	var keys [][2]string
	for rows.Next() {
		var user, doc string
		if err := rows.Scan(&user, &doc); err != nil {
			return nil, fmt.Errorf("scan view key: %w", err)
		}
		keys = append(keys, [2]string{user, doc})
	}
	return keys, rows.Err()
}
