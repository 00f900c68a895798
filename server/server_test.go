package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/log"
)

func TestServeTCPRoundTrip(t *testing.T) {
	engine, err := cache.New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := log.NewLogger(log.ErrorLevel, discardWriter{})
	errc := make(chan error, 1)
	go func() {
		errc <- Serve(ctx, Config{TCPAddr: addr, MaxItemSize: 1 << 20}, engine, l)
	}()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("set k 0 0 1\r\nv\r\n"))
	r := bufio.NewReader(conn)
	line, _ := r.ReadString('\n')
	if line != StoredResponse+"\r\n" {
		t.Fatalf("set response = %q", line)
	}

	conn.Write([]byte("get k\r\n"))
	header, _ := r.ReadString('\n')
	if header != "VALUE k 0 1\r\n" {
		t.Fatalf("get header = %q", header)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not shut down after context cancel")
	}
}

func TestServeExposesMetricsEndpoint(t *testing.T) {
	engine, err := cache.New(1<<20, 1<<16, 16, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	tcpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen tcp: %v", err)
	}
	tcpAddr := tcpLn.Addr().String()
	tcpLn.Close()

	metricsLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen metrics: %v", err)
	}
	metricsAddr := metricsLn.Addr().String()
	metricsLn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := log.NewLogger(log.ErrorLevel, discardWriter{})
	errc := make(chan error, 1)
	go func() {
		errc <- Serve(ctx, Config{TCPAddr: tcpAddr, MetricsAddr: metricsAddr, MaxItemSize: 1 << 20}, engine, l)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + metricsAddr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cachelot_cmd_get") {
		t.Fatalf("metrics body missing cachelot_cmd_get:\n%s", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not shut down after context cancel")
	}
}
