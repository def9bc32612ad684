package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrOverloaded is returned by ViewRegistry.GetOrCreate when the view
// capacity limit is exceeded. The caller must respond with an empty
// response — the client sees it as network loss and retries later.
var ErrOverloaded = errors.New("sync: view capacity exceeded")

// EditEntry is one unacknowledged outbound line, ordered by the server
// version at which it was emitted.
type EditEntry struct {
	ServerVersion int
	Line          string
}

// View is one user's session against one document.
type View struct {
	mu sync.Mutex

	Username string
	Filename string

	Shadow                    string
	BackupShadow              string
	ShadowClientVersion       int
	ShadowServerVersion       int
	BackupShadowServerVersion int
	EditStack                 []EditEntry

	LastTouched time.Time
	Text        *Text
}

func (v *View) touch() { v.LastTouched = time.Now() }

// pruneAcked removes every edit-stack entry whose server version is <= upTo.
// Idempotent: reapplying with the same or lower upTo after acks have
// already been pruned is a no-op.
func (v *View) pruneAcked(upTo int) {
	kept := v.EditStack[:0]
	for _, e := range v.EditStack {
		if e.ServerVersion > upTo {
			kept = append(kept, e)
		}
	}
	v.EditStack = kept
}

// rollbackIfLost restores shadow/backup_shadow when the action's
// server_version matches the backup rather than the current shadow — the
// one-lost-response recovery path.
func (v *View) rollbackIfLost(actionServerVersion int, log *slog.Logger) {
	if actionServerVersion != v.ShadowServerVersion && actionServerVersion == v.BackupShadowServerVersion {
		log.Warn("rollback to backup shadow",
			slog.String("user", v.Username), slog.String("doc", v.Filename),
			slog.Int("from", v.ShadowServerVersion), slog.Int("to", v.BackupShadowServerVersion))
		v.Shadow = v.BackupShadow
		v.ShadowServerVersion = v.BackupShadowServerVersion
		v.EditStack = nil
	}
}

// toRecord serializes the view for persistence.
func (v *View) toRecord() ViewRecord {
	stack := make([]EditEntry, len(v.EditStack))
	copy(stack, v.EditStack)
	return ViewRecord{
		Username:                  v.Username,
		Filename:                  v.Filename,
		Shadow:                    v.Shadow,
		BackupShadow:              v.BackupShadow,
		ShadowClientVersion:       v.ShadowClientVersion,
		ShadowServerVersion:       v.ShadowServerVersion,
		BackupShadowServerVersion: v.BackupShadowServerVersion,
		EditStack:                 stack,
		LastTouched:               v.LastTouched,
	}
}

type viewKey struct{ user, doc string }

// ViewRegistry owns the (user, document) -> View map. It also maintains a
// secondary per-user index, exposed through GetUserViews. The sync engine
// does not use that index: it looks up each action's view with GetOrCreate.
type ViewRegistry struct {
	mu       sync.Mutex
	byKey    map[viewKey]*View
	byUser   map[string]map[string]*View
	creating singleflight.Group

	maxViews int
	texts    *TextRegistry
	store    Store
	log      *slog.Logger
}

// NewViewRegistry builds an empty registry. maxViews <= 0 means unlimited.
func NewViewRegistry(maxViews int, texts *TextRegistry, store Store, log *slog.Logger) *ViewRegistry {
	return &ViewRegistry{
		byKey:    make(map[viewKey]*View),
		byUser:   make(map[string]map[string]*View),
		maxViews: maxViews,
		texts:    texts,
		store:    store,
		log:      log,
	}
}

// SetMaxViews updates the capacity ceiling enforced by GetOrCreate, letting
// a config hot-reload take effect without restarting the daemon.
func (r *ViewRegistry) SetMaxViews(maxViews int) {
	r.mu.Lock()
	r.maxViews = maxViews
	r.mu.Unlock()
}

// GetUserViews returns a snapshot copy of user's filename->View map. No
// caller in this module uses it; ProcessRequest takes the registry lock once
// per action through GetOrCreate.
func (r *ViewRegistry) GetUserViews(user string) map[string]*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.byUser[user]
	out := make(map[string]*View, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// GetOrCreate returns the View for (user, doc), creating it (and attaching
// to/creating the underlying Text) on first touch. Concurrent first
// touches collapse via singleflight so only one creation ever runs.
func (r *ViewRegistry) GetOrCreate(user, doc string) (*View, error) {
	key := viewKey{user, doc}

	r.mu.Lock()
	if v, ok := r.byKey[key]; ok {
		r.mu.Unlock()
		v.mu.Lock()
		v.touch()
		v.mu.Unlock()
		return v, nil
	}
	count := len(r.byKey)
	r.mu.Unlock()

	if r.maxViews > 0 && count >= r.maxViews {
		return nil, ErrOverloaded
	}

	sfKey := user + "\x00" + doc
	v, err, _ := r.creating.Do(sfKey, func() (interface{}, error) {
		r.mu.Lock()
		if v, ok := r.byKey[key]; ok {
			r.mu.Unlock()
			v.mu.Lock()
			v.touch()
			v.mu.Unlock()
			return v, nil
		}
		r.mu.Unlock()

		view := &View{Username: user, Filename: doc}
		if r.store != nil {
			if rec, found, err := r.store.LoadView(user, doc); err == nil && found {
				view.Shadow = rec.Shadow
				view.BackupShadow = rec.BackupShadow
				view.ShadowClientVersion = rec.ShadowClientVersion
				view.ShadowServerVersion = rec.ShadowServerVersion
				view.BackupShadowServerVersion = rec.BackupShadowServerVersion
				view.EditStack = rec.EditStack
				view.LastTouched = rec.LastTouched
			} else if err != nil {
				r.log.Warn("load view failed", slog.String("user", user), slog.String("doc", doc), slog.Any("err", err))
			}
		}
		view.touch()
		view.Text = r.texts.attach(doc)

		r.mu.Lock()
		r.byKey[key] = view
		if r.byUser[user] == nil {
			r.byUser[user] = make(map[string]*View)
		}
		r.byUser[user][doc] = view
		r.mu.Unlock()
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

// Destroy removes the view unconditionally and detaches it from its Text,
// regardless of idle time — used by explicit nullify, which must not wait
// for the idle-view timeout.
func (r *ViewRegistry) Destroy(v *View) {
	r.mu.Lock()
	key := viewKey{v.Username, v.Filename}
	delete(r.byKey, key)
	if m := r.byUser[v.Username]; m != nil {
		delete(m, v.Filename)
		if len(m) == 0 {
			delete(r.byUser, v.Username)
		}
	}
	r.mu.Unlock()

	r.texts.detach(v.Text)
	if r.store != nil {
		if err := r.store.DeleteView(v.Username, v.Filename); err != nil {
			r.log.Warn("delete view failed", slog.String("user", v.Username), slog.String("doc", v.Filename), slog.Any("err", err))
		}
	}
}

// idleViews returns views whose LastTouched predates cutoff, for the reaper.
func (r *ViewRegistry) idleViews(cutoff time.Time) []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idle []*View
	for _, v := range r.byKey {
		if v.LastTouched.Before(cutoff) {
			idle = append(idle, v)
		}
	}
	return idle
}

// ReapIdle destroys every view whose LastTouched predates cutoff,
// re-checking eligibility before removal. It stops early if ctx is done,
// leaving the remainder for the next tick.
func (r *ViewRegistry) ReapIdle(ctx context.Context, cutoff time.Time) int {
	evicted := 0
	for _, v := range r.idleViews(cutoff) {
		if ctx.Err() != nil {
			return evicted
		}
		v.mu.Lock()
		stillIdle := v.LastTouched.Before(cutoff)
		v.mu.Unlock()
		if !stillIdle {
			continue
		}
		r.Destroy(v)
		evicted++
	}
	return evicted
}

// count reports the number of live views, for diagnostics/MAX_VIEWS metrics.
func (r *ViewRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// persist writes the view's current state through the store.
func (r *ViewRegistry) persist(v *View) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveView(v.toRecord()); err != nil {
		r.log.Warn("persist view failed", slog.String("user", v.Username), slog.String("doc", v.Filename), slog.Any("err", err))
	}
}
