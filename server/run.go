// File: server/run.go
// Package server implements the reactor loop and graceful shutdown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"

	"github.com/momentics/hioload-echo/affinity"
	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/transport/tcp"
)

// Run drives the event loop on the calling goroutine until Shutdown is
// called, ctx is cancelled, or the multiplexer fails. It returns nil after a
// requested stop and the *api.WaitError otherwise. All descriptors are
// released before Run returns.
func (s *Server) Run(ctx context.Context) error {
	if s.State() == StateStopped {
		return api.ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.release()

	if s.cfg.CPU >= 0 {
		if err := affinity.Pin(s.cfg.CPU); err != nil {
			s.log.Warn("cpu pinning failed", "cpu", s.cfg.CPU, "err", err)
		}
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() { s.Shutdown() })
		defer stop()
	}

	batch := make([]api.ReadyEvent, s.cfg.MaxBatch)
	for !s.stopReq.Load() {
		if _, err := s.turn(batch, -1); err != nil {
			return err
		}
	}
	s.log.Info("shutting down", "connections", s.conns.Len())
	return nil
}

// turn is one loop iteration: wait for a ready batch and dispatch every
// entry. An empty batch is a no-op iteration.
func (s *Server) turn(batch []api.ReadyEvent, timeoutMs int) (int, error) {
	n, err := s.mux.Wait(batch, timeoutMs)
	if err != nil {
		s.log.Error("multiplexer wait failed", "err", err)
		var we *api.WaitError
		if !errors.As(err, &we) {
			err = &api.WaitError{Err: err}
		}
		return 0, err
	}
	s.metrics.Add(control.LoopWakeups, 1)
	if n == 0 {
		s.metrics.Add(control.LoopEmptyWakeup, 1)
		return 0, nil
	}
	for _, ev := range batch[:n] {
		s.dispatch(ev)
	}
	return n, nil
}

// dispatch routes one ready event to the accept handler, the waker or the
// I/O handler.
func (s *Server) dispatch(ev api.ReadyEvent) {
	switch ev.Fd {
	case s.lfd:
		s.handleAccept(ev)
	case s.waker.Fd():
		if err := s.waker.Drain(); err != nil {
			s.log.Warn("waker drain failed", "err", err)
		}
	default:
		s.handleIO(ev)
	}
}

// Shutdown asks the loop to stop at its next wait boundary. It is safe to
// call from any goroutine and more than once.
func (s *Server) Shutdown() {
	if s.stopReq.Swap(true) {
		return
	}
	if err := s.waker.Wake(); err != nil && !errors.Is(err, api.ErrClosed) {
		s.log.Warn("wake failed", "err", err)
	}
}

// Close releases every descriptor of a server whose loop is not running.
// While Run is active it behaves like Shutdown.
func (s *Server) Close() error {
	if s.running.Load() {
		s.Shutdown()
		return nil
	}
	s.stopReq.Store(true)
	s.release()
	return nil
}

// release closes every connection, then the listener, the waker and the
// multiplexer, each deregistered before it is closed.
func (s *Server) release() {
	s.teardown.Do(func() {
		if s.conns != nil {
			for _, fd := range s.conns.Fds() {
				if c, ok := s.conns.Get(fd); ok {
					s.closeConn(c, errShutdown)
				}
			}
		}
		if s.lfd >= 0 {
			if err := s.mux.Deregister(s.lfd); err != nil {
				s.log.Debug("deregister listener", "err", err)
			}
			tcp.Close(s.lfd)
			s.lfd = -1
		}
		if s.waker != nil {
			s.mux.Deregister(s.waker.Fd())
			s.waker.Close()
		}
		if s.scratch != nil {
			s.bufs.PutBuffer(s.scratch)
			s.scratch = nil
		}
		if err := s.mux.Close(); err != nil {
			s.log.Warn("multiplexer close failed", "err", err)
		}
		s.state.Store(int32(StateStopped))
	})
}
