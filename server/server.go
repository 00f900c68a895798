package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/internal/arena"
	"github.com/cachelot/cachelot-sub000/log"
	"github.com/cachelot/cachelot-sub000/metrics"
)

// statsReportInterval is how often Serve publishes a fresh metrics
// snapshot while a metrics listener is configured.
const statsReportInterval = 5 * time.Second

// Config selects which transports Serve listens on; an empty address
// disables that transport. Mirrors config.Options' TCPAddr/UnixAddr/
// UDPAddr/MetricsAddr/MaxItemSize/MaxCommandLine fields one-for-one, kept
// as its own type so this package does not import config.
type Config struct {
	TCPAddr        string
	UnixAddr       string
	UDPAddr        string
	MetricsAddr    string
	MaxItemSize    int
	MaxCommandLine int
}

// Serve runs every configured listener until ctx is canceled or any one
// of them fails, the same all-or-nothing lifecycle
// golang.org/x/sync/errgroup gives a goroutine group: one failure
// cancels ctx and Serve returns that error once every listener has
// unwound.
func Serve(ctx context.Context, cfg Config, engine *cache.Engine, l log.Logger) error {
	meta := &ConnMeta{Handler: NewHandler(engine), MaxItemSize: cfg.MaxItemSize, MaxCommandLine: cfg.MaxCommandLine}
	defer meta.Handler.Close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", cfg.TCPAddr)
		if err != nil {
			return err
		}
		g.Go(func() error { return serveStream(ctx, ln, meta, l) })
	}
	if cfg.UnixAddr != "" {
		ln, err := net.Listen("unix", cfg.UnixAddr)
		if err != nil {
			return err
		}
		g.Go(func() error { return serveStream(ctx, ln, meta, l) })
	}
	if cfg.UDPAddr != "" {
		pc, err := net.ListenPacket("udp", cfg.UDPAddr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				pc.Close()
			}()
			return serveUDP(ctx, pc, meta, l)
		})
	}

	g.Go(func() error { return dumpStatsOnSIGUSR1(ctx, meta, l) })

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		sink := metrics.New(reg)
		g.Go(func() error { return reportStatsPeriodically(ctx, meta, sink) })

		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				srv.Close()
			}()
			err := srv.ListenAndServe()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// reportStatsPeriodically publishes a metrics snapshot every
// statsReportInterval, reading the engine's counters through the mailbox
// like every other access.
func reportStatsPeriodically(ctx context.Context, meta *ConnMeta, sink metrics.Sink) error {
	ticker := time.NewTicker(statsReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var s cache.Stats
			var a arena.Stats
			meta.Handler.Do(func(e *cache.Engine) {
				s = e.Stats()
				a = e.ArenaStats()
			})
			sink.Report(s, a)
		}
	}
}

// dumpStatsOnSIGUSR1 logs a stats snapshot every time the process
// receives SIGUSR1, matching the cachelot convention of a
// signal-triggered stats report. The snapshot is read through
// meta.Handler.Do so it runs on the engine's owning goroutine like every
// other engine access, instead of racing the connections' mailbox
// calls.
func dumpStatsOnSIGUSR1(ctx context.Context, meta *ConnMeta, l log.Logger) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			var s cache.Stats
			meta.Handler.Do(func(e *cache.Engine) {
				s = e.Stats()
			})
			l.Infof("stats: curr_items=%d cmd_get=%d get_hits=%d get_misses=%d evictions=%d",
				s.CurrItems, s.CmdGet, s.GetHits, s.GetMisses, s.Evictions)
		}
	}
}

// serveStream accepts connections on ln until ctx is done, serving each
// on its own goroutine. Grounded on
// original_source/src/server/tcp_server.h's accept loop.
func serveStream(ctx context.Context, ln net.Listener, meta *ConnMeta, l log.Logger) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		rwc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go newConn(l, meta, rwc).serve()
	}
}
