// Command cachelotd runs the cache engine behind the memcached ASCII
// protocol. It parses configuration, builds the engine and server, and
// handles SIGINT/SIGTERM for graceful shutdown and SIGUSR1 for an
// on-demand stats dump - the daemonization behavior implied by
// original_source/src/server/main.cpp, supplemented here since no
// Non-goal excludes it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/config"
	"github.com/cachelot/cachelot-sub000/log"
	"github.com/cachelot/cachelot-sub000/server"
)

func main() {
	opts := config.Default()
	fs := pflag.NewFlagSet("cachelotd", pflag.ExitOnError)
	opts.BindFlags(fs)
	fs.Parse(os.Args[1:])

	if err := opts.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(opts.LogLevel)

	engine, err := cache.New(uint32(opts.MemoryLimit), uint32(opts.PageSize), opts.InitialDictSize, opts.EnableEvictions)
	if err != nil {
		logger.Fatal("failed to create cache engine: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	installShutdownHandler(cancel, logger)

	cfg := server.Config{
		TCPAddr:        opts.TCPAddr,
		UnixAddr:       opts.UnixAddr,
		UDPAddr:        opts.UDPAddr,
		MetricsAddr:    opts.MetricsAddr,
		MaxItemSize:    opts.MaxItemSize,
		MaxCommandLine: opts.MaxCommandLine,
	}
	if err := server.Serve(ctx, cfg, engine, logger); err != nil {
		logger.Fatal("server exited with error: ", err)
	}
}

func newLogger(levelName string) log.Logger {
	level, err := log.LevelFromString(levelName)
	if err != nil {
		level = log.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel(level))
	z, err := zc.Build()
	if err != nil {
		return log.NewLogger(level, os.Stderr)
	}
	return log.NewLoggerSink(level, log.NewZapSink(z))
}

func zapLevel(l log.Level) zapcore.Level {
	switch l {
	case log.DebugLevel:
		return zapcore.DebugLevel
	case log.WarnLevel:
		return zapcore.WarnLevel
	case log.ErrorLevel:
		return zapcore.ErrorLevel
	case log.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// installShutdownHandler wires SIGINT/SIGTERM to a graceful shutdown:
// canceling ctx makes server.Serve stop every listener and return once
// in-flight connections unwind. SIGUSR1's stats dump is handled inside
// server.Serve itself, since it must run through the engine's mailbox.
func installShutdownHandler(cancel context.CancelFunc, logger log.Logger) {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Info("shutdown signal received, closing listeners")
		cancel()
	}()
}
