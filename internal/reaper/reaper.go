// Package reaper periodically expires idle views, texts, and buffers from
// the sync engine, and supports an on-demand sweep triggered by the HTTP
// "clean" action.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	syncpkg "github.com/ehrlich-b/wingthing/internal/sync"
)

// Timeouts bundles the three idle thresholds the sweep applies.
type Timeouts struct {
	View   time.Duration
	Text   time.Duration
	Buffer time.Duration
}

// Reaper owns the background sweep loop.
type Reaper struct {
	engine   *syncpkg.Engine
	mu       sync.Mutex
	timeouts Timeouts
	interval time.Duration
	deadline time.Duration
	log      *slog.Logger
}

// New builds a reaper that sweeps every interval, giving each sweep up to
// deadline before abandoning the remainder until the next tick.
func New(engine *syncpkg.Engine, timeouts Timeouts, interval, deadline time.Duration, log *slog.Logger) *Reaper {
	return &Reaper{engine: engine, timeouts: timeouts, interval: interval, deadline: deadline, log: log}
}

// SetTimeouts updates the idle thresholds applied by future sweeps, letting
// a config hot-reload take effect without restarting the daemon.
func (r *Reaper) SetTimeouts(t Timeouts) {
	r.mu.Lock()
	r.timeouts = t
	r.mu.Unlock()
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass immediately, under its own soft deadline,
// and logs what it evicted. Used both by the periodic loop and by the
// transport's "clean" request.
func (r *Reaper) Sweep(ctx context.Context) {
	sweepCtx := ctx
	var cancel context.CancelFunc
	if r.deadline > 0 {
		sweepCtx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	r.mu.Lock()
	t := r.timeouts
	r.mu.Unlock()

	stats := r.engine.Reap(sweepCtx, time.Now(), t.View, t.Text, t.Buffer)
	if stats.ViewsEvicted > 0 || stats.TextsEvicted > 0 || stats.BuffersEvicted > 0 {
		r.log.Info("reaper sweep",
			slog.Int("views_evicted", stats.ViewsEvicted),
			slog.Int("texts_evicted", stats.TextsEvicted),
			slog.Int("buffers_evicted", stats.BuffersEvicted))
	}
}
