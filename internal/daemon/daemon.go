// Package daemon wires configuration, persistence, the sync registries, the
// reaper, and the three transports into one running mobwrited process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ehrlich-b/wingthing/internal/config"
	"github.com/ehrlich-b/wingthing/internal/reaper"
	"github.com/ehrlich-b/wingthing/internal/store"
	"github.com/ehrlich-b/wingthing/internal/sync"
	"github.com/ehrlich-b/wingthing/internal/transport"
)

// Daemon owns the long-lived components a running mobwrited assembles:
// the store, the registries, the reaper, and the transport listeners.
type Daemon struct {
	Config  *config.Config
	Store   sync.Store
	Engine  *sync.Engine
	Reaper  *reaper.Reaper
	log     *slog.Logger
	httpSrv *http.Server
	stream  *transport.StreamServer
	texts   *sync.TextRegistry
	views   *sync.ViewRegistry
}

// Build opens the store and assembles the registries, engine, and reaper
// from cfg, but does not start listening.
func Build(cfg *config.Config, log *slog.Logger) (*Daemon, error) {
	var st sync.Store
	if cfg.SqliteDSN == ":memory:" {
		st = store.NewMemoryStore()
	} else {
		s, err := store.Open(cfg.SqliteDSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = s
	}

	texts := sync.NewTextRegistry(cfg.MaxChars, st, log)
	views := sync.NewViewRegistry(cfg.MaxViews, texts, st, log)
	buffers := sync.NewBufferRegistry(st, log)
	engine := sync.NewEngine(texts, views, buffers, st, log)

	rp := reaper.New(engine, reaper.Timeouts{
		View:   cfg.ViewTimeout(),
		Text:   cfg.TextTimeout(),
		Buffer: cfg.BufferTimeout(),
	}, time.Minute, 30*time.Second, log)

	return &Daemon{
		Config: cfg,
		Store:  st,
		Engine: engine,
		Reaper: rp,
		log:    log,
		texts:  texts,
		views:  views,
	}, nil
}

// ApplyConfig updates the live limits and timeouts the registries and
// reaper enforce, without rebuilding the store or restarting transports.
// This is what the config file watcher calls on a hot-reload.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.Config = cfg
	d.texts.SetMaxChars(cfg.MaxChars)
	d.views.SetMaxViews(cfg.MaxViews)
	d.Reaper.SetTimeouts(reaper.Timeouts{
		View:   cfg.ViewTimeout(),
		Text:   cfg.TextTimeout(),
		Buffer: cfg.BufferTimeout(),
	})
}

// Run starts the reaper and all three transports and blocks until ctx is
// canceled or a listener fails, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() {
		d.log.Info("reaper started")
		d.Reaper.Run(ctx)
		errCh <- nil
	}()

	mux := http.NewServeMux()
	mux.Handle("/", transport.NewHTTPHandler(d.Engine, d.Reaper, d.log))
	mux.Handle("/ws", transport.NewWSHandler(d.Engine, d.Config.TelnetTimeout(), d.log))
	d.httpSrv = &http.Server{Addr: d.Config.HTTPAddr, Handler: mux}
	go func() {
		d.log.Info("http transport listening", slog.String("addr", d.Config.HTTPAddr))
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http transport: %w", err)
			return
		}
		errCh <- nil
	}()

	d.stream = transport.NewStreamServer(d.Engine, d.Config.TelnetTimeout(), d.Config.ConnectionOrigin, d.log)
	streamAddr := fmt.Sprintf(":%d", d.Config.ListenPort)
	go func() {
		if err := d.stream.ListenAndServe(streamAddr); err != nil {
			errCh <- fmt.Errorf("stream transport: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		d.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			cancel()
			d.shutdown()
			return err
		}
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	if d.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.httpSrv.Shutdown(shutdownCtx)
	}
	if d.stream != nil {
		d.stream.Close()
	}
	if closer, ok := d.Store.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// RunUntilSignal is the entrypoint used by `mobwrited serve`: it blocks
// until SIGINT/SIGTERM, then shuts down gracefully.
func RunUntilSignal(d *Daemon) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}
