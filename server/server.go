// File: server/server.go
// Package server implements the single-threaded readiness-driven echo loop:
// startup, accept handling, connection I/O and shutdown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/conntable"
	"github.com/momentics/hioload-echo/internal/logger"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/reactor"
	"github.com/momentics/hioload-echo/transport/tcp"
)

var ErrAlreadyRunning = errors.New("server already running")

// NewServer creates the multiplexer, the listener and the wake descriptor
// and registers the latter two. Any failure here is fatal to startup.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:       *cfg,
		log:       logger.Default(),
		lfd:       -1,
		accept:    tcp.Accept,
		metrics:   control.NewMetricsRegistry(),
		probes:    control.NewDebugProbes(),
		acceptLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	mux, err := reactor.New(s.cfg.Backend, s.cfg.MaxBatch)
	if err != nil {
		return nil, fmt.Errorf("server: create multiplexer: %w", err)
	}
	if !mux.Supports(s.cfg.Mode) {
		mux.Close()
		return nil, fmt.Errorf("server: %s backend: %w: %s", s.cfg.Backend, api.ErrUnsupportedMode, s.cfg.Mode)
	}
	s.mux = mux

	if err := s.openListener(); err != nil {
		s.release()
		return nil, err
	}

	waker, err := reactor.NewWaker()
	if err != nil {
		s.release()
		return nil, fmt.Errorf("server: %w", err)
	}
	s.waker = waker
	if err := s.mux.Register(waker.Fd(), api.InterestRead, api.TriggerLevel); err != nil {
		s.release()
		return nil, fmt.Errorf("server: register waker: %w", err)
	}

	s.conns = conntable.New()
	s.bufs = pool.NewBytePool(s.cfg.ReadBufferSize)
	s.scratch = s.bufs.GetBuffer()

	s.probes.RegisterProbe("conntable.size", func() any { return s.live.Load() })
	s.probes.RegisterProbe("loop.state", func() any { return s.State().String() })
	control.RegisterPlatformProbes(s.probes)

	s.log.Info("listening", "port", s.port, "mode", s.cfg.Mode, "backend", s.cfg.Backend)
	return s, nil
}

// openListener creates and registers the listening endpoint. In edge mode
// the listener is non-blocking so the accept loop can detect exhaustion.
func (s *Server) openListener() error {
	lfd, err := tcp.CreateListener(s.cfg.Port)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.lfd = lfd
	if s.cfg.Mode == api.TriggerEdge {
		if err := tcp.SetNonblock(lfd, true); err != nil {
			return fmt.Errorf("server: listener nonblock: %w", err)
		}
	}
	if s.port, err = tcp.LocalPort(lfd); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := s.mux.Register(lfd, api.InterestRead, s.cfg.Mode); err != nil {
		return fmt.Errorf("server: register listener: %w", err)
	}
	return nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int { return s.port }

// Config returns a copy of the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// State reports whether the loop is running or stopped.
func (s *Server) State() State { return State(s.state.Load()) }

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int { return int(s.live.Load()) }

// Metrics returns the server's metrics registry.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Stats returns a snapshot of metrics and debug probes.
func (s *Server) Stats() map[string]any {
	out := s.probes.DumpState()
	for k, v := range s.metrics.GetSnapshot() {
		out[k] = v
	}
	return out
}
