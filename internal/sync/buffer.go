package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Buffer holds one in-progress multi-slot request reassembly. Slots are
// filled at most once each; the buffer is complete once every slot is
// non-empty.
type Buffer struct {
	mu          sync.Mutex
	name        string
	size        int
	slots       []string
	filledCount int
	lastTouched time.Time
}

func (b *Buffer) touch() { b.lastTouched = time.Now() }

// complete reports whether every slot has been filled.
func (b *Buffer) complete() bool { return b.filledCount == b.size }

// join concatenates the slots in order.
func (b *Buffer) join() string {
	var sb strings.Builder
	for _, s := range b.slots {
		sb.WriteString(s)
	}
	return sb.String()
}

type bufferKey struct {
	name string
	size int
}

// BufferRegistry assembles oversized client requests split across a fixed
// number of slots, keyed by (logical name, slot count).
type BufferRegistry struct {
	mu      sync.Mutex
	buffers map[bufferKey]*Buffer
	store   Store
	log     *slog.Logger
}

// NewBufferRegistry builds an empty registry.
func NewBufferRegistry(store Store, log *slog.Logger) *BufferRegistry {
	return &BufferRegistry{
		buffers: make(map[bufferKey]*Buffer),
		store:   store,
		log:     log,
	}
}

// AcceptFragment writes text into slot index (1-based) of the buffer
// identified by (name, size), creating it on first fragment. If the write
// completes the buffer, the buffer is deleted and the concatenation of all
// slots (URL-unescaped) is returned with complete=true. Otherwise the
// buffer is persisted and complete is false.
func (r *BufferRegistry) AcceptFragment(name string, size, index int, text string) (complete bool, reassembled string, err error) {
	if size < 1 {
		return false, "", fmt.Errorf("buffer: invalid size %d", size)
	}
	if index < 1 || index > size {
		return false, "", fmt.Errorf("buffer: index %d out of range [1,%d]", index, size)
	}

	key := bufferKey{name, size}

	r.mu.Lock()
	b, ok := r.buffers[key]
	if !ok {
		b = &Buffer{name: name, size: size, slots: make([]string, size)}
		if r.store != nil {
			if slots, found, err := r.store.LoadBuffer(name, size); err == nil && found {
				b.slots = slots
				for _, s := range slots {
					if s != "" {
						b.filledCount++
					}
				}
			} else if err != nil {
				r.log.Warn("load buffer failed", slog.String("name", name), slog.Any("err", err))
			}
		}
		r.buffers[key] = b
	}
	r.mu.Unlock()

	b.mu.Lock()
	slot := index - 1
	wasFilled := b.slots[slot] != ""
	b.slots[slot] = text
	if !wasFilled && text != "" {
		b.filledCount++
	} else if wasFilled && text == "" {
		b.filledCount--
	}
	b.touch()

	if !b.complete() {
		slots := make([]string, len(b.slots))
		copy(slots, b.slots)
		b.mu.Unlock()

		if r.store != nil {
			if err := r.store.SaveBuffer(name, size, slots); err != nil {
				r.log.Warn("persist buffer failed", slog.String("name", name), slog.Any("err", err))
			}
		}
		return false, "", nil
	}

	joined := b.join()
	b.mu.Unlock()

	r.mu.Lock()
	delete(r.buffers, key)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteBuffer(name, size); err != nil {
			r.log.Warn("delete buffer failed", slog.String("name", name), slog.Any("err", err))
		}
	}

	unescaped, err := urlUnquote(joined)
	if err != nil {
		return false, "", fmt.Errorf("buffer: reassembly decode failed: %w", err)
	}
	return true, unescaped, nil
}

// idleBuffers returns buffers whose lastTouched predates cutoff, for the
// reaper.
func (r *BufferRegistry) idleBuffers(cutoff time.Time) []bufferKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []bufferKey
	for k, b := range r.buffers {
		b.mu.Lock()
		old := b.lastTouched.Before(cutoff)
		b.mu.Unlock()
		if old {
			idle = append(idle, k)
		}
	}
	return idle
}

// evict removes the named buffer unconditionally.
func (r *BufferRegistry) evict(k bufferKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, k)
}

// ReapIdle evicts every buffer whose lastTouched predates cutoff. It stops
// early if ctx is done, leaving the remainder for the next tick.
func (r *BufferRegistry) ReapIdle(ctx context.Context, cutoff time.Time) int {
	evicted := 0
	for _, k := range r.idleBuffers(cutoff) {
		if ctx.Err() != nil {
			return evicted
		}
		r.evict(k)
		if r.store != nil {
			if err := r.store.DeleteBuffer(k.name, k.size); err != nil {
				r.log.Warn("reap: delete buffer failed", slog.String("name", k.name), slog.Any("err", err))
			}
		}
		evicted++
	}
	return evicted
}

// count reports the number of in-progress buffers, for diagnostics.
func (r *BufferRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}
