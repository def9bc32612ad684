package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	syncpkg "github.com/ehrlich-b/wingthing/internal/sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepEvictsNothingWhenFresh(t *testing.T) {
	log := discardLogger()
	texts := syncpkg.NewTextRegistry(0, nil, log)
	views := syncpkg.NewViewRegistry(0, texts, nil, log)
	buffers := syncpkg.NewBufferRegistry(nil, log)
	engine := syncpkg.NewEngine(texts, views, buffers, nil, log)

	engine.ProcessRequest("u:alice\nF:0:doc\nR:0:Hello\n\n")

	r := New(engine, Timeouts{View: time.Hour, Text: time.Hour, Buffer: time.Hour}, time.Minute, time.Second, log)
	r.Sweep(context.Background())

	stats := engine.Reap(context.Background(), time.Now(), time.Hour, time.Hour, time.Hour)
	if stats.ViewsEvicted != 0 {
		t.Errorf("views evicted = %d, want 0 for a freshly touched view", stats.ViewsEvicted)
	}
}

func TestSweepEvictsExpiredView(t *testing.T) {
	log := discardLogger()
	texts := syncpkg.NewTextRegistry(0, nil, log)
	views := syncpkg.NewViewRegistry(0, texts, nil, log)
	buffers := syncpkg.NewBufferRegistry(nil, log)
	engine := syncpkg.NewEngine(texts, views, buffers, nil, log)

	engine.ProcessRequest("u:alice\nF:0:doc\nR:0:Hello\n\n")

	future := time.Now().Add(2 * time.Hour)
	stats := engine.Reap(context.Background(), future, time.Hour, time.Hour, time.Hour)
	if stats.ViewsEvicted != 1 {
		t.Errorf("views evicted = %d, want 1", stats.ViewsEvicted)
	}
}
