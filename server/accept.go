// File: server/accept.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/transport/tcp"
)

// handleAccept turns listener readiness into connections. Level mode takes
// one pending connection per notification; edge mode accepts until the
// listener reports would-block.
func (s *Server) handleAccept(ev api.ReadyEvent) {
	if ev.Flags.Terminal() {
		s.log.Warn("listener reported error condition", "flags", ev.Flags)
	}
	edge := s.cfg.Mode == api.TriggerEdge
	for {
		fd, peer, err := s.accept(s.lfd, edge)
		if err != nil {
			switch {
			case api.IsWouldBlock(err):
				return
			case api.IsInterrupted(err):
				continue
			}
			s.acceptFailed(&api.AcceptError{Err: err})
			if edge && api.IsTransient(err) {
				// aborted handshake; more may be queued behind it
				continue
			}
			return
		}
		s.adopt(fd, peer)
		if !edge {
			return
		}
	}
}

// adopt inserts an accepted descriptor into the table and registers it.
func (s *Server) adopt(fd int, peer string) {
	if s.cfg.SendBufferSize > 0 {
		if err := tcp.SetSendBuffer(fd, s.cfg.SendBufferSize); err != nil {
			s.log.Debug("send buffer not applied", "fd", fd, "err", err)
		}
	}
	c, err := s.conns.Insert(fd, s.cfg.Mode, peer)
	if err != nil {
		s.log.Error("connection table out of sync", "fd", fd, "err", err)
		tcp.Close(fd)
		return
	}
	if err := s.mux.Register(fd, api.InterestRead, s.cfg.Mode); err != nil {
		s.log.Warn("register connection failed", "fd", fd, "err", err)
		s.conns.Remove(fd)
		tcp.Close(fd)
		return
	}
	s.live.Add(1)
	s.metrics.Add(control.ConnAccepted, 1)
	s.metrics.Set(control.ConnActive, s.live.Load())
	s.log.Debug("connection accepted", "fd", c.Fd(), "peer", c.Peer())
}

// acceptFailed logs an accept failure, throttled so descriptor exhaustion
// cannot flood the log.
func (s *Server) acceptFailed(err *api.AcceptError) {
	s.metrics.Add(control.AcceptErrors, 1)
	if !s.acceptLog.Allow() {
		s.suppressed++
		return
	}
	if s.suppressed > 0 {
		s.log.Warn("accept failed", "err", err, "suppressed", s.suppressed)
		s.suppressed = 0
		return
	}
	s.log.Warn("accept failed", "err", err)
}
