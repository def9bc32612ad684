package sync

import (
	"context"
	"testing"
	"time"
)

func TestTextRegistryGetOrCreateReturnsSameText(t *testing.T) {
	r := NewTextRegistry(0, nil, testLogger())
	t1 := r.getOrCreate("doc")
	t2 := r.getOrCreate("doc")
	if t1 != t2 {
		t.Error("expected the same *Text for the same name")
	}
}

func TestTextSetTextNormalizesLineEndings(t *testing.T) {
	tx := &Text{name: "doc", log: testLogger()}
	s := "a\r\nb\rc\n"
	tx.SetText(&s)
	if got := *tx.Snapshot(); got != "a\nb\nc\n" {
		t.Errorf("normalized = %q", got)
	}
}

func TestTextSetTextTruncatesToTail(t *testing.T) {
	tx := &Text{name: "doc", maxChars: 5, log: testLogger()}
	s := "abcdefghij"
	tx.SetText(&s)
	if got := *tx.Snapshot(); got != "fghij" {
		t.Errorf("truncated = %q, want tail of 5 chars", got)
	}
}

func TestTextSetTextNilNullifies(t *testing.T) {
	tx := &Text{name: "doc", log: testLogger()}
	s := "hello"
	tx.SetText(&s)
	tx.SetText(nil)
	if tx.Snapshot() != nil {
		t.Error("expected Snapshot to be nil after nullify")
	}
}

func TestTextRegistryAttachDetachRefcount(t *testing.T) {
	r := NewTextRegistry(0, nil, testLogger())
	tx := r.attach("doc")
	tx.mu.Lock()
	if tx.refCount != 1 {
		t.Errorf("refCount = %d, want 1", tx.refCount)
	}
	tx.mu.Unlock()

	r.detach(tx)
	tx.mu.Lock()
	if tx.refCount != 0 {
		t.Errorf("refCount = %d, want 0", tx.refCount)
	}
	tx.mu.Unlock()
}

func TestTextRegistryReapIdleSkipsReferencedText(t *testing.T) {
	r := NewTextRegistry(0, nil, testLogger())
	tx := r.attach("referenced")
	tx.mu.Lock()
	tx.lastModified = time.Now().Add(-2 * time.Hour)
	tx.mu.Unlock()

	evicted := r.ReapIdle(context.Background(), time.Now().Add(-time.Hour))
	if evicted != 0 {
		t.Errorf("evicted = %d, want 0 because the text still has a referencing view", evicted)
	}
}

func TestTextRegistryReapIdleEvictsUnreferencedExpiredText(t *testing.T) {
	r := NewTextRegistry(0, nil, testLogger())
	tx := r.getOrCreate("unreferenced")
	tx.mu.Lock()
	tx.lastModified = time.Now().Add(-2 * time.Hour)
	tx.mu.Unlock()

	evicted := r.ReapIdle(context.Background(), time.Now().Add(-time.Hour))
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if r.count() != 0 {
		t.Errorf("count after reap = %d, want 0", r.count())
	}
}

func TestTailRunesHandlesMultibyte(t *testing.T) {
	s := "héllo wörld"
	got := tailRunes(s, 5)
	runes := []rune(s)
	want := string(runes[len(runes)-5:])
	if got != want {
		t.Errorf("tailRunes = %q, want %q", got, want)
	}
}
