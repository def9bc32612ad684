package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ehrlich-b/wingthing/internal/sync"
)

// WSHandler exposes the same request/response exchange over a persistent
// WebSocket connection instead of one-shot HTTP or TCP round-trips, so a
// browser client can keep a single socket open across many syncs.
type WSHandler struct {
	engine      *sync.Engine
	readTimeout time.Duration
	log         *slog.Logger
}

// NewWSHandler builds a WebSocket upgrade handler around engine.
func NewWSHandler(engine *sync.Engine, readTimeout time.Duration, log *slog.Logger) *WSHandler {
	return &WSHandler{engine: engine, readTimeout: readTimeout, log: log}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx := r.Context()
	for {
		readCtx := ctx
		var cancel context.CancelFunc
		if h.readTimeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, h.readTimeout)
		}
		_, data, err := conn.Read(readCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			conn.Close(websocket.StatusNormalClosure, "done")
			return
		}

		resp := h.engine.ProcessRequest(string(data))

		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		err = conn.Write(writeCtx, websocket.MessageText, []byte(resp))
		writeCancel()
		if err != nil {
			h.log.Debug("ws: write failed", slog.Any("err", err))
			return
		}
	}
}
