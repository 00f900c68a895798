// Package config parses and validates the knobs needed to build and serve
// a cache.Engine: memory budget, dict sizing, eviction policy, listen
// addresses, and logging.
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/pflag"

	"github.com/cachelot/cachelot-sub000/log"
)

// Options is a flat struct of every configurable knob, populated from
// pflag flags the same way calvinalkan-agent-task's Config is populated
// from its CLI overrides, with validation run once at construction time
// per Voskan-arena-cache's applyOptions pattern (fail fast, descriptive
// error, no partially-valid Options ever handed to New).
type Options struct {
	MemoryLimit     uint64
	PageSize        uint64
	InitialDictSize int
	EnableEvictions bool

	MaxItemSize    int
	MaxKeyLength   int
	MaxCommandLine int

	TCPAddr  string // empty disables the TCP listener
	UnixAddr string // empty disables the Unix listener
	UDPAddr  string // empty disables the UDP listener

	MetricsAddr string // empty disables the Prometheus /metrics endpoint

	LogLevel string
}

// Default returns the baseline configuration: a 64 MiB arena split into
// 1 MiB pages, evictions on, listening on TCP only.
func Default() Options {
	return Options{
		MemoryLimit:     64 << 20,
		PageSize:        1 << 20,
		InitialDictSize: 1 << 16,
		EnableEvictions: true,
		MaxItemSize:     1 << 20,
		MaxKeyLength:    250,
		MaxCommandLine:  8192,
		TCPAddr:         ":11211",
		LogLevel:        "INFO",
	}
}

// BindFlags registers every Options field onto fs, using o's current
// values as defaults - call Default() first to get the baseline, then
// BindFlags, then fs.Parse.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.Uint64Var(&o.MemoryLimit, "memory-limit", o.MemoryLimit, "total bytes available for item storage, must be a power of two")
	fs.Uint64Var(&o.PageSize, "page-size", o.PageSize, "allocator page size in bytes, must be a power of two")
	fs.IntVar(&o.InitialDictSize, "initial-dict-size", o.InitialDictSize, "initial hash table capacity (rounded up to a power of two)")
	fs.BoolVar(&o.EnableEvictions, "evictions", o.EnableEvictions, "evict least-recently-used pages to make room for new items")
	fs.IntVar(&o.MaxItemSize, "max-item-size", o.MaxItemSize, "largest value accepted from a client, in bytes")
	fs.IntVar(&o.MaxKeyLength, "max-key-length", o.MaxKeyLength, "largest key accepted from a client, in bytes")
	fs.IntVar(&o.MaxCommandLine, "max-command-line", o.MaxCommandLine, "largest ASCII command line accepted from a client, in bytes")
	fs.StringVar(&o.TCPAddr, "tcp-addr", o.TCPAddr, "TCP listen address, empty to disable")
	fs.StringVar(&o.UnixAddr, "unix-addr", o.UnixAddr, "Unix domain socket path, empty to disable")
	fs.StringVar(&o.UDPAddr, "udp-addr", o.UDPAddr, "UDP listen address, empty to disable")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr, "HTTP listen address for the Prometheus /metrics endpoint, empty to disable")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "DEBUG, INFO, WARN, ERROR, or FATAL")
}

var (
	errNotPow2       = errors.New("config: value must be a power of two")
	errTooFewPages   = errors.New("config: memory-limit must fit at least 4 pages")
	errNotDivisible  = errors.New("config: memory-limit must divide evenly by page-size")
	errNoListener    = errors.New("config: at least one of tcp-addr/unix-addr/udp-addr must be set")
	errKeyTooLarge   = errors.New("config: max-key-length exceeds the protocol's 250-byte limit")
	errItemExceedsPg = errors.New("config: max-item-size cannot exceed page-size")
	errExceedsUint32 = errors.New("config: memory-limit/page-size must each fit in 32 bits, the arena's offset width")
)

func isPow2(n uint64) bool { return n != 0 && n&(n-1) == 0 }

// Validate mirrors the original's Cache::Create preconditions, plus the
// listener/protocol constraints this repo's server layer adds.
func (o Options) Validate() error {
	if o.MemoryLimit > math.MaxUint32 || o.PageSize > math.MaxUint32 {
		return errExceedsUint32
	}
	if !isPow2(o.MemoryLimit) {
		return fmt.Errorf("%w: memory-limit=%d", errNotPow2, o.MemoryLimit)
	}
	if !isPow2(o.PageSize) {
		return fmt.Errorf("%w: page-size=%d", errNotPow2, o.PageSize)
	}
	if o.MemoryLimit < o.PageSize*4 {
		return errTooFewPages
	}
	if o.MemoryLimit%o.PageSize != 0 {
		return errNotDivisible
	}
	if uint64(o.MaxItemSize) > o.PageSize {
		return errItemExceedsPg
	}
	if o.MaxKeyLength > 250 {
		return errKeyTooLarge
	}
	if o.TCPAddr == "" && o.UnixAddr == "" && o.UDPAddr == "" {
		return errNoListener
	}
	if _, err := log.LevelFromString(o.LogLevel); err != nil {
		return fmt.Errorf("config: log-level: %w", err)
	}
	return nil
}
