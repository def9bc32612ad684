package store

import (
	"sync"
	"time"

	syncpkg "github.com/ehrlich-b/wingthing/internal/sync"
)

// MemoryStore is a pure in-process implementation of sync.Store, for tests
// and for runs where nothing needs to survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	texts   map[string]memText
	views   map[[2]string]syncpkg.ViewRecord
	buffers map[syncpkg.BufferKey][]string
}

type memText struct {
	content      *string
	lastModified time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		texts:   make(map[string]memText),
		views:   make(map[[2]string]syncpkg.ViewRecord),
		buffers: make(map[syncpkg.BufferKey][]string),
	}
}

func (m *MemoryStore) SaveText(name string, text *string, lastModified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cp *string
	if text != nil {
		s := *text
		cp = &s
	}
	m.texts[name] = memText{content: cp, lastModified: lastModified}
	return nil
}

func (m *MemoryStore) LoadText(name string) (*string, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.texts[name]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	var cp *string
	if t.content != nil {
		s := *t.content
		cp = &s
	}
	return cp, t.lastModified, true, nil
}

func (m *MemoryStore) DeleteText(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.texts, name)
	return nil
}

func (m *MemoryStore) ListTextNames() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.texts))
	for name := range m.texts {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryStore) SaveView(rec syncpkg.ViewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := make([]syncpkg.EditEntry, len(rec.EditStack))
	copy(stack, rec.EditStack)
	rec.EditStack = stack
	m.views[[2]string{rec.Username, rec.Filename}] = rec
	return nil
}

func (m *MemoryStore) LoadView(username, filename string) (syncpkg.ViewRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.views[[2]string{username, filename}]
	if !ok {
		return syncpkg.ViewRecord{}, false, nil
	}
	stack := make([]syncpkg.EditEntry, len(rec.EditStack))
	copy(stack, rec.EditStack)
	rec.EditStack = stack
	return rec, true, nil
}

func (m *MemoryStore) DeleteView(username, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, [2]string{username, filename})
	return nil
}

func (m *MemoryStore) ListViewKeys() ([][2]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([][2]string, 0, len(m.views))
	for k := range m.views {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemoryStore) SaveBuffer(name string, size int, slots []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(slots))
	copy(cp, slots)
	m.buffers[syncpkg.BufferKey{Name: name, Size: size}] = cp
	return nil
}

func (m *MemoryStore) LoadBuffer(name string, size int) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok := m.buffers[syncpkg.BufferKey{Name: name, Size: size}]
	if !ok {
		return nil, false, nil
	}
	cp := make([]string, len(slots))
	copy(cp, slots)
	return cp, true, nil
}

func (m *MemoryStore) DeleteBuffer(name string, size int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, syncpkg.BufferKey{Name: name, Size: size})
	return nil
}

func (m *MemoryStore) ListBufferKeys() ([]syncpkg.BufferKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]syncpkg.BufferKey, 0, len(m.buffers))
	for k := range m.buffers {
		keys = append(keys, k)
	}
	return keys, nil
}
