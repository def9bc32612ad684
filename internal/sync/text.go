package sync

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Text is the master copy of one shared document. A nil content means
// "unknown/deleted" — no view has ever supplied content, or the document
// was explicitly nullified.
type Text struct {
	mu           sync.Mutex
	name         string
	content      *string
	lastModified time.Time
	refCount     int

	maxChars int
	store    Store
	log      *slog.Logger
}

// Name returns the document's key. Safe without holding the lock: immutable
// after construction.
func (t *Text) Name() string { return t.name }

// Snapshot returns the current master text (nil if unknown/deleted). Pure
// diff reads may observe a value that is stale by the time a concurrent
// mutation lands; that is an accepted tradeoff, not a bug.
func (t *Text) Snapshot() *string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.content == nil {
		return nil
	}
	s := *t.content
	return &s
}

// SetText normalizes line endings, enforces the character cap (keeping the
// tail), persists synchronously, and updates lastModified. Passing nil
// nullifies the document.
func (t *Text) SetText(newText *string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setTextLocked(newText)
}

func (t *Text) setTextLocked(newText *string) {
	if newText != nil {
		normalized := normalizeLineEndings(*newText)
		if t.maxChars > 0 {
			normalized = tailRunes(normalized, t.maxChars)
		}
		newText = &normalized
	}
	t.content = newText
	t.lastModified = time.Now()
	if t.store != nil {
		if err := t.store.SaveText(t.name, t.content, t.lastModified); err != nil {
			t.log.Warn("persist text failed", slog.String("doc", t.name), slog.Any("err", err))
		}
	}
}

// withLock runs fn with the text's read-modify-write lock held, required
// for patch-apply and raw-overwrite to observe a consistent master copy.
func (t *Text) withLock(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// tailRunes keeps at most max runes of s, the most recent content winning.
func tailRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}

// TextRegistry owns the single Text per document name.
type TextRegistry struct {
	mu       sync.Mutex
	texts    map[string]*Text
	creating singleflight.Group
	maxChars int
	store    Store
	log      *slog.Logger
}

// NewTextRegistry builds an empty registry backed by store (may be nil for
// a pure in-memory, unpersisted run — callers normally supply a real Store).
func NewTextRegistry(maxChars int, store Store, log *slog.Logger) *TextRegistry {
	return &TextRegistry{
		texts:    make(map[string]*Text),
		maxChars: maxChars,
		store:    store,
		log:      log,
	}
}

// SetMaxChars updates the cap applied to newly-created texts, letting a
// config hot-reload take effect without restarting the daemon. Texts
// already created keep the cap in force when they were made.
func (r *TextRegistry) SetMaxChars(maxChars int) {
	r.mu.Lock()
	r.maxChars = maxChars
	r.mu.Unlock()
}

// getOrCreate returns the Text for name, creating (and loading from the
// store) it on first touch. singleflight collapses concurrent first
// touches of the same name onto one creation.
func (r *TextRegistry) getOrCreate(name string) *Text {
	r.mu.Lock()
	if t, ok := r.texts[name]; ok {
		r.mu.Unlock()
		return t
	}
	r.mu.Unlock()

	v, _, _ := r.creating.Do(name, func() (interface{}, error) {
		r.mu.Lock()
		if t, ok := r.texts[name]; ok {
			r.mu.Unlock()
			return t, nil
		}
		r.mu.Unlock()

		t := &Text{name: name, maxChars: r.maxChars, store: r.store, log: r.log}
		if r.store != nil {
			if content, lastModified, found, err := r.store.LoadText(name); err == nil && found {
				t.content = content
				t.lastModified = lastModified
			} else if err != nil {
				r.log.Warn("load text failed", slog.String("doc", name), slog.Any("err", err))
			}
		}

		r.mu.Lock()
		r.texts[name] = t
		r.mu.Unlock()
		return t, nil
	})
	return v.(*Text)
}

// attach increments refcount; called once, by the view registry, when a
// fresh View is created against this document.
func (r *TextRegistry) attach(name string) *Text {
	t := r.getOrCreate(name)
	t.mu.Lock()
	t.refCount++
	t.mu.Unlock()
	return t
}

// detach decrements refcount; called once, when a View referencing t is
// destroyed.
func (r *TextRegistry) detach(t *Text) {
	t.mu.Lock()
	t.refCount--
	t.mu.Unlock()
}

// idleTexts returns texts with zero refcount whose lastModified predates
// cutoff, for the reaper. Eviction itself is left to the caller so the
// reaper can apply its soft deadline between candidates.
func (r *TextRegistry) idleTexts(cutoff time.Time) []*Text {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []*Text
	for _, t := range r.texts {
		t.mu.Lock()
		if t.refCount <= 0 && t.lastModified.Before(cutoff) {
			idle = append(idle, t)
		}
		t.mu.Unlock()
	}
	return idle
}

// evict removes name from the registry unconditionally. Callers must have
// already confirmed the text is eligible (see idleTexts).
func (r *TextRegistry) evict(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.texts, name)
}

// ReapIdle evicts every text with zero refcount whose lastModified predates
// cutoff, re-checking eligibility under its own lock before removal. It
// stops early if ctx is done, leaving the remainder for the next tick.
func (r *TextRegistry) ReapIdle(ctx context.Context, cutoff time.Time) int {
	evicted := 0
	for _, t := range r.idleTexts(cutoff) {
		if ctx.Err() != nil {
			return evicted
		}
		t.mu.Lock()
		stillIdle := t.refCount <= 0 && t.lastModified.Before(cutoff)
		t.mu.Unlock()
		if !stillIdle {
			continue
		}
		r.evict(t.name)
		if r.store != nil {
			if err := r.store.DeleteText(t.name); err != nil {
				r.log.Warn("reap: delete text failed", slog.String("doc", t.name), slog.Any("err", err))
			}
		}
		evicted++
	}
	return evicted
}

// count reports the number of live Text entries, for diagnostics/metrics.
func (r *TextRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}
