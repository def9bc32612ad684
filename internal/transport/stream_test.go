package transport

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

func TestStreamServerRoundTrip(t *testing.T) {
	s := NewStreamServer(newTestEngine(), 2*time.Second, nil, discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = ln
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.handleConn(conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("u:alice\nF:0:doc\nR:0:Hello\n\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	var resp strings.Builder
	buf := make([]byte, 256)
	for {
		n, err := reader.Read(buf)
		resp.Write(buf[:n])
		if err != nil {
			break
		}
	}

	if !strings.Contains(resp.String(), "F:0:doc") {
		t.Errorf("response = %q, want F: header line", resp.String())
	}
}

func TestReadRequestBreaksOnSingleBlankLine(t *testing.T) {
	s := NewStreamServer(newTestEngine(), 2*time.Second, nil, discardLogger())
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	var raw string
	var readErr error
	go func() {
		raw, readErr = s.readRequest(server)
		close(done)
	}()

	if _, err := client.Write([]byte("u:alice\nF:0:doc\nR:0:Hello\n\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("readRequest did not return after a single blank-line terminator")
	}

	if readErr != nil {
		t.Fatalf("readRequest: %v", readErr)
	}
	if raw != "u:alice\nF:0:doc\nR:0:Hello\n\n" {
		t.Errorf("raw = %q", raw)
	}
}

func TestStreamServerOriginRestriction(t *testing.T) {
	s := NewStreamServer(newTestEngine(), time.Second, []string{"10.0.0.1"}, discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if s.originAllowed(conn) {
		t.Error("expected loopback connection to be rejected when origin allowlist excludes it")
	}
}
