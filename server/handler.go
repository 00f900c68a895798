// Package server implements the memcached ASCII protocol (spec.md §6) on
// top of a cache.Engine: command parsing, connection handling, and
// TCP/Unix/UDP listeners.
package server

import (
	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/recycle"
)

// MaxCommandLength bounds a single ASCII command line (everything up to
// and including the trailing CRLF, not counting a storage command's data
// block). Mirrors the teacher's handler.go check that recycle.Pool's
// largest class can satisfy a zero-copy read of one.
const MaxCommandLength = 8192

// Handler serializes every connection's access to the shared
// cache.Engine through a single owning goroutine - spec.md §5 describes
// the engine as single-threaded cooperative, owned by exactly one
// execution context at a time, and names "serialize calls through a
// mailbox" as the way to let multiple callers share one instance. Do is
// that mailbox: task runs on the owning goroutine and the caller blocks
// until it completes, so two connections' commands are never
// interleaved inside the engine.
type Handler interface {
	Do(task func(*cache.Engine))
	Pool() *recycle.Pool
	Close()
}

type handler struct {
	pool  *recycle.Pool
	tasks chan func(*cache.Engine)
	done  chan struct{}
}

// NewHandler builds a Handler backed by engine and starts its mailbox
// goroutine. Panics if the recycle pool's largest size class cannot
// satisfy a zero-copy command-line read, the same sanity check the
// teacher's NewHandler performs before ever accepting a connection.
func NewHandler(engine *cache.Engine) Handler {
	pool := recycle.NewPool()
	if pool.MaxChunkSize() < MaxCommandLength {
		panic("max chunk size should not be less than input buffer")
	}
	h := &handler{
		pool:  pool,
		tasks: make(chan func(*cache.Engine)),
		done:  make(chan struct{}),
	}
	go h.run(engine)
	return h
}

func (h *handler) run(engine *cache.Engine) {
	defer close(h.done)
	for task := range h.tasks {
		task(engine)
	}
}

func (h *handler) Do(task func(*cache.Engine)) {
	reply := make(chan struct{})
	h.tasks <- func(e *cache.Engine) {
		task(e)
		close(reply)
	}
	<-reply
}

func (h *handler) Pool() *recycle.Pool { return h.pool }

// Close stops the mailbox goroutine once every in-flight Do call has
// drained, for a clean shutdown.
func (h *handler) Close() {
	close(h.tasks)
	<-h.done
}
