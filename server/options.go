// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/reactor"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithTriggerMode selects level- or edge-triggered delivery.
func WithTriggerMode(m api.TriggerMode) ServerOption {
	return func(s *Server) {
		s.cfg.Mode = m
	}
}

// WithBackend selects the multiplexer strategy.
func WithBackend(b reactor.Backend) ServerOption {
	return func(s *Server) {
		s.cfg.Backend = b
	}
}

// WithReadBufferSize overrides the per-read scratch size.
func WithReadBufferSize(n int) ServerOption {
	return func(s *Server) {
		s.cfg.ReadBufferSize = n
	}
}

// WithMaxBatch overrides the number of ready events taken per wait.
func WithMaxBatch(n int) ServerOption {
	return func(s *Server) {
		s.cfg.MaxBatch = n
	}
}

// WithSendBufferSize sets SO_SNDBUF on accepted connections.
func WithSendBufferSize(n int) ServerOption {
	return func(s *Server) {
		s.cfg.SendBufferSize = n
	}
}

// WithCPU pins the loop thread to cpu while Run executes.
func WithCPU(cpu int) ServerOption {
	return func(s *Server) {
		s.cfg.CPU = cpu
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics shares an external registry.
func WithMetrics(m *control.MetricsRegistry) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithEventObserver installs fn to see every ready event dispatched to the
// I/O handler. fn runs on the loop goroutine.
func WithEventObserver(fn func(api.ReadyEvent)) ServerOption {
	return func(s *Server) {
		s.observer = fn
	}
}
