// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Command echoserver serves a readiness-driven TCP echo loop on one port.
//
//	echoserver [--mode edge|level] [--backend epoll|poll|select] port
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/internal/logger"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/reactor"
	"github.com/momentics/hioload-echo/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run parses args, builds the server and blocks in its loop. It returns the
// process exit status.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("echoserver", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "edge", "readiness trigger mode: edge or level")
	backend := fs.String("backend", string(reactor.BackendEpoll), "multiplexer: epoll, poll or select")
	bufSize := fs.Int("buffer-size", pool.DefaultBufferSize, "read buffer size in bytes")
	maxBatch := fs.Int("max-batch", 1024, "ready events handled per wait")
	cpu := fs.Int("cpu", -1, "pin the loop thread to this CPU (-1 disables)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: echoserver [flags] port")
		fs.PrintDefaults()
	}
	// pflag prints nothing itself under ContinueOnError, except the usage
	// for --help.
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(stderr, "invalid port %q\n", fs.Arg(0))
		fs.Usage()
		return 1
	}

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log := logger.Init(stderr, level)

	cfg := server.DefaultConfig()
	cfg.Port = port
	cfg.ReadBufferSize = *bufSize
	cfg.MaxBatch = *maxBatch
	cfg.CPU = *cpu
	if cfg.Mode, err = api.ParseTriggerMode(*mode); err != nil {
		log.Error("bad flag", "err", err)
		return 1
	}
	if cfg.Backend, err = reactor.ParseBackend(*backend); err != nil {
		log.Error("bad flag", "err", err)
		return 1
	}

	srv, err := server.NewServer(cfg, server.WithLogger(log))
	if err != nil {
		log.Error("startup failed", "err", err)
		return 1
	}
	if err := srv.Run(ctx); err != nil {
		log.Error("event loop stopped", "err", err)
		return 1
	}
	log.Info("stopped", "stats", srv.Stats())
	return 0
}
