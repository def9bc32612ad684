package sync

import "time"

// ViewRecord is the persisted shape of a View.
type ViewRecord struct {
	Username                  string
	Filename                  string
	Shadow                    string
	BackupShadow              string
	ShadowClientVersion       int
	ShadowServerVersion       int
	BackupShadowServerVersion int
	EditStack                 []EditEntry
	LastTouched               time.Time
}

// Store is the persistence boundary the sync core requires. internal/store
// provides an in-memory and a sqlite-backed implementation.
type Store interface {
	SaveText(name string, text *string, lastModified time.Time) error
	LoadText(name string) (text *string, lastModified time.Time, found bool, err error)
	DeleteText(name string) error
	ListTextNames() ([]string, error)

	SaveView(rec ViewRecord) error
	LoadView(username, filename string) (ViewRecord, bool, error)
	DeleteView(username, filename string) error
	ListViewKeys() ([][2]string, error)

	SaveBuffer(name string, size int, slots []string) error
	LoadBuffer(name string, size int) (slots []string, found bool, err error)
	DeleteBuffer(name string, size int) error
	ListBufferKeys() ([]BufferKey, error)
}

// BufferKey identifies a buffer by its logical name and declared slot count.
type BufferKey struct {
	Name string
	Size int
}
