package store

import (
	"testing"
	"time"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadText(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	content := "Hello world"

	if err := s.SaveText("doc", &content, now); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, lastModified, found, err := s.LoadText("doc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if got == nil || *got != content {
		t.Errorf("content = %v, want %q", got, content)
	}
	if !lastModified.Equal(now) {
		t.Errorf("lastModified = %v, want %v", lastModified, now)
	}
}

func TestSaveTextNullifies(t *testing.T) {
	s := openTestStore(t)
	content := "seed"
	if err := s.SaveText("doc", &content, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SaveText("doc", nil, time.Now()); err != nil {
		t.Fatalf("nullify: %v", err)
	}
	got, _, found, err := s.LoadText("doc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected row to still exist after nullify")
	}
	if got != nil {
		t.Errorf("content = %v, want nil", *got)
	}
}

func TestLoadTextNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, found, err := s.LoadText("missing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestDeleteText(t *testing.T) {
	s := openTestStore(t)
	content := "x"
	s.SaveText("doc", &content, time.Now())
	if err := s.DeleteText("doc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _, found, _ := s.LoadText("doc")
	if found {
		t.Error("expected text gone after delete")
	}
}

func TestListTextNames(t *testing.T) {
	s := openTestStore(t)
	a, b := "a", "b"
	s.SaveText("doc-b", &b, time.Now())
	s.SaveText("doc-a", &a, time.Now())
	names, err := s.ListTextNames()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "doc-a" || names[1] != "doc-b" {
		t.Errorf("names = %v, want sorted [doc-a doc-b]", names)
	}
}

func TestSaveAndLoadViewWithEditStack(t *testing.T) {
	s := openTestStore(t)
	rec := sync.ViewRecord{
		Username:                  "alice",
		Filename:                  "doc",
		Shadow:                    "Hello",
		BackupShadow:              "Hell",
		ShadowClientVersion:       2,
		ShadowServerVersion:       3,
		BackupShadowServerVersion: 2,
		EditStack: []sync.EditEntry{
			{ServerVersion: 2, Line: "d:2:=5\t\n"},
			{ServerVersion: 3, Line: "d:3:=5\n"},
		},
		LastTouched: time.Now().UTC().Truncate(time.Second),
	}

	if err := s.SaveView(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := s.LoadView("alice", "doc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if got.Shadow != rec.Shadow || got.BackupShadow != rec.BackupShadow {
		t.Errorf("shadow mismatch: got %+v", got)
	}
	if len(got.EditStack) != 2 {
		t.Fatalf("edit stack len = %d, want 2", len(got.EditStack))
	}
	if got.EditStack[0].Line != rec.EditStack[0].Line {
		t.Errorf("entry 0 line = %q, want %q (embedded tab/newline must survive)", got.EditStack[0].Line, rec.EditStack[0].Line)
	}
	if got.EditStack[1].ServerVersion != 3 {
		t.Errorf("entry 1 version = %d, want 3", got.EditStack[1].ServerVersion)
	}
}

func TestDeleteView(t *testing.T) {
	s := openTestStore(t)
	s.SaveView(sync.ViewRecord{Username: "bob", Filename: "doc"})
	if err := s.DeleteView("bob", "doc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, found, _ := s.LoadView("bob", "doc")
	if found {
		t.Error("expected view gone after delete")
	}
}

func TestBufferRoundTrip(t *testing.T) {
	s := openTestStore(t)
	slots := []string{"u:alice\n", "", "R:0:Hi\n\n"}
	if err := s.SaveBuffer("x", 3, slots); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := s.LoadBuffer("x", 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if len(got) != 3 || got[0] != slots[0] || got[1] != slots[1] || got[2] != slots[2] {
		t.Errorf("slots = %v, want %v", got, slots)
	}

	if err := s.DeleteBuffer("x", 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, found, _ = s.LoadBuffer("x", 3)
	if found {
		t.Error("expected buffer gone after delete")
	}
}

func TestListBufferKeys(t *testing.T) {
	s := openTestStore(t)
	s.SaveBuffer("a", 2, []string{"1", ""})
	s.SaveBuffer("b", 4, []string{"1", "", "", ""})
	keys, err := s.ListBufferKeys()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 entries", keys)
	}
}
