package store

import (
	"database/sql"
	"fmt"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

func (s *Store) SaveBuffer(name string, size int, slots []string) error {
	_, err := s.db.Exec(`INSERT INTO buffers (name, size, slots, last_touched)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name, size) DO UPDATE SET
			slots = excluded.slots,
			last_touched = excluded.last_touched`,
		name, size, encodeSlots(slots))
	if err != nil {
		return fmt.Errorf("save buffer %s/%d: %w", name, size, err)
	}
	return nil
}

func (s *Store) LoadBuffer(name string, size int) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT slots FROM buffers WHERE name = ? AND size = ?`, name, size).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load buffer %s/%d: %w", name, size, err)
	}
	slots, err := decodeSlots(raw, size)
	if err != nil {
		return nil, false, fmt.Errorf("load buffer %s/%d: %w", name, size, err)
	}
	return slots, true, nil
}

func (s *Store) DeleteBuffer(name string, size int) error {
	if _, err := s.db.Exec(`DELETE FROM buffers WHERE name = ? AND size = ?`, name, size); err != nil {
		return fmt.Errorf("delete buffer %s/%d: %w", name, size, err)
	}
	return nil
}

func (s *Store) ListBufferKeys() ([]sync.BufferKey, error) {
	rows, err := s.db.Query(`SELECT name, size FROM buffers ORDER BY name, size`)
	if err != nil {
		return nil, fmt.Errorf("list buffers: %w", err)
	}
	defer rows.Close()
	var keys []sync.BufferKey
	for rows.Next() {
		var k sync.BufferKey
		if err := rows.Scan(&k.Name, &k.Size); err != nil {
			return nil, fmt.Errorf("scan buffer key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
