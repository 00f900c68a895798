package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/log"
)

// testClient is the client end of a net.Pipe, with a bufio.Reader for
// reading CRLF-terminated response lines.
type testClient struct {
	net.Conn
	r *bufio.Reader
}

func newTestConn(t *testing.T) (*testClient, func()) {
	t.Helper()
	engine, err := cache.New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	meta := &ConnMeta{Handler: NewHandler(engine), MaxItemSize: 1 << 20}
	client, server := net.Pipe()
	l := log.NewLogger(log.ErrorLevel, discardWriter{})
	c := newConn(l, meta, server)
	go c.serve()
	return &testClient{Conn: client, r: bufio.NewReader(client)}, func() {
		client.Close()
		meta.Handler.Close()
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (tc *testClient) sendLine(t *testing.T, line string) {
	t.Helper()
	if _, err := tc.Conn.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (tc *testClient) readLine(t *testing.T) string {
	t.Helper()
	tc.Conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := tc.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return line[:len(line)-2] // strip \r\n
}

func TestConnSetGet(t *testing.T) {
	tc, cleanup := newTestConn(t)
	defer cleanup()

	tc.sendLine(t, "set foo 0 0 3")
	tc.sendLine(t, "bar")
	if resp := tc.readLine(t); resp != StoredResponse {
		t.Fatalf("set response = %q, want STORED", resp)
	}

	tc.sendLine(t, "get foo")
	if resp := tc.readLine(t); resp != "VALUE foo 0 3" {
		t.Fatalf("get header = %q", resp)
	}
	if resp := tc.readLine(t); resp != "bar" {
		t.Fatalf("get value = %q", resp)
	}
	if resp := tc.readLine(t); resp != EndResponse {
		t.Fatalf("get end = %q", resp)
	}
}

func TestConnGetMiss(t *testing.T) {
	tc, cleanup := newTestConn(t)
	defer cleanup()

	tc.sendLine(t, "get nope")
	if resp := tc.readLine(t); resp != EndResponse {
		t.Fatalf("expected immediate END on miss, got %q", resp)
	}
}

func TestConnDeleteNotFound(t *testing.T) {
	tc, cleanup := newTestConn(t)
	defer cleanup()

	tc.sendLine(t, "delete nope")
	if resp := tc.readLine(t); resp != NotFoundResponse {
		t.Fatalf("delete response = %q, want NOT_FOUND", resp)
	}
}

func TestConnIncr(t *testing.T) {
	tc, cleanup := newTestConn(t)
	defer cleanup()

	tc.sendLine(t, "set n 0 0 2")
	tc.sendLine(t, "10")
	tc.readLine(t) // STORED

	tc.sendLine(t, "incr n 5")
	if resp := tc.readLine(t); resp != "15" {
		t.Fatalf("incr response = %q, want 15", resp)
	}
}

func TestConnVersion(t *testing.T) {
	tc, cleanup := newTestConn(t)
	defer cleanup()

	tc.sendLine(t, "version")
	resp := tc.readLine(t)
	if resp != VersionPrefixResponse+" "+Version {
		t.Fatalf("version response = %q", resp)
	}
}
