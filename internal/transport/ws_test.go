package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestWSHandlerRoundTrip(t *testing.T) {
	h := NewWSHandler(newTestEngine(), 2*time.Second, discardLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte("u:alice\nF:0:doc\nR:0:Hello\n\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "F:0:doc") {
		t.Errorf("response = %q, want F: header line", data)
	}
}

func TestWSHandlerMultipleMessagesOnSameConnection(t *testing.T) {
	h := NewWSHandler(newTestEngine(), 2*time.Second, discardLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for i := 0; i < 2; i++ {
		if err := conn.Write(ctx, websocket.MessageText, []byte("u:alice\nF:0:doc\nR:0:Hello\n\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}
