// Package transport adapts wire requests from HTTP, raw TCP, and WebSocket
// clients into calls against the sync engine.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ehrlich-b/wingthing/internal/reaper"
	"github.com/ehrlich-b/wingthing/internal/sync"
)

// HTTPHandler serves the q=/p=/clean form-field surface over plain HTTP.
type HTTPHandler struct {
	engine  *sync.Engine
	reaper  *reaper.Reaper
	log     *slog.Logger
	limiter *originLimiter
}

// NewHTTPHandler builds an http.Handler around engine. rp may be nil; a
// "clean" request then runs no sweep but still answers "Database clean.".
// Requests are additionally throttled per remote IP (10 req/s, burst 20)
// ahead of the engine's own MAX_VIEWS handling.
func NewHTTPHandler(engine *sync.Engine, rp *reaper.Reaper, log *slog.Logger) *HTTPHandler {
	return &HTTPHandler{engine: engine, reaper: rp, log: log, limiter: newOriginLimiter(10, 20)}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(httpRemoteIP(r)) {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, ok := r.Form["clean"]; ok {
		if h.reaper != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
			defer cancel()
			h.reaper.Sweep(ctx)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Database clean."))
		return
	}

	if req := r.Form.Get("q"); req != "" {
		resp := h.engine.ProcessRequest(req)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(resp))
		return
	}

	if req := r.Form.Get("p"); req != "" {
		resp := h.engine.ProcessRequest(req)
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Write([]byte("mobwrite.callback(\"" + escapeCallback(resp) + "\");"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// escapeCallback escapes resp for embedding inside a double-quoted JS
// string literal: backslash, double quote, and both line-ending forms.
func escapeCallback(resp string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(resp)
}
