// File: server/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/conntable"
	"github.com/momentics/hioload-echo/transport/tcp"
)

var (
	errPeerClosed    = errors.New("peer closed")
	errShutdown      = errors.New("server shutdown")
	errTerminalFlags = errors.New("terminal readiness flags")
)

// handleIO runs the read/echo/close cycle for one ready connection.
func (s *Server) handleIO(ev api.ReadyEvent) {
	c, ok := s.conns.Get(ev.Fd)
	if !ok {
		s.log.Debug("event for unknown descriptor", "fd", ev.Fd, "flags", ev.Flags)
		return
	}
	if s.observer != nil {
		s.observer(ev)
	}
	if ev.Flags.Terminal() || !(ev.Flags.Readable() || ev.Flags.Writable()) {
		s.closeConn(c, fmt.Errorf("%w: %s", errTerminalFlags, ev.Flags))
		return
	}
	if ev.Flags.Writable() && !s.flush(c) {
		return
	}
	if c.Mode() == api.TriggerEdge {
		// Reads pause while echo bytes are queued. A completed flush
		// resumes the drain here since no new edge will announce data that
		// arrived in the meantime.
		if ev.Flags.Readable() || (ev.Flags.Writable() && !c.HasPending()) {
			s.drain(c)
		}
		return
	}
	if ev.Flags.Readable() {
		s.readOnce(c)
	}
}

// readOnce performs the single bounded read of level-triggered mode.
func (s *Server) readOnce(c *conntable.Conn) {
	n, err := tcp.Read(c.Fd(), s.scratch)
	switch {
	case err != nil && (api.IsInterrupted(err) || api.IsWouldBlock(err)):
		return
	case err != nil:
		s.closeConn(c, err)
	case n == 0:
		s.closeConn(c, errPeerClosed)
	default:
		s.metrics.Add(control.BytesRead, int64(n))
		s.echo(c, s.scratch[:n])
	}
}

// drain reads and echoes until the descriptor reports would-block, the peer
// closes, or echo bytes have to wait for write readiness.
func (s *Server) drain(c *conntable.Conn) {
	for !c.HasPending() {
		n, err := tcp.Read(c.Fd(), s.scratch)
		if err != nil {
			switch {
			case api.IsWouldBlock(err):
				return
			case api.IsInterrupted(err):
				continue
			}
			s.closeConn(c, err)
			return
		}
		if n == 0 {
			s.closeConn(c, errPeerClosed)
			return
		}
		s.metrics.Add(control.BytesRead, int64(n))
		if !s.echo(c, s.scratch[:n]) {
			return
		}
	}
}

// echo writes p back in full. A would-block on a non-blocking descriptor
// queues the remainder and arms write interest. It returns false if the
// connection was closed.
func (s *Server) echo(c *conntable.Conn, p []byte) bool {
	for len(p) > 0 {
		n, err := tcp.Write(c.Fd(), p)
		if n > 0 {
			s.metrics.Add(control.BytesWritten, int64(n))
			p = p[n:]
		}
		if err == nil {
			continue
		}
		switch {
		case api.IsInterrupted(err):
			continue
		case api.IsWouldBlock(err):
			return s.deferWrite(c, p)
		}
		s.closeConn(c, err)
		return false
	}
	return true
}

// deferWrite copies p into a pooled buffer on the pending queue.
func (s *Server) deferWrite(c *conntable.Conn, p []byte) bool {
	buf := s.bufs.GetSized(len(p))
	copy(buf, p)
	c.Defer(buf)
	s.metrics.Add(control.WritesDeferred, 1)
	if c.WriteArmed() {
		return true
	}
	if err := s.mux.Modify(c.Fd(), api.InterestRead|api.InterestWrite); err != nil {
		s.closeConn(c, err)
		return false
	}
	c.SetWriteArmed(true)
	return true
}

// flush writes queued echo bytes. Once the queue is empty write interest is
// dropped. It returns false if the connection was closed.
func (s *Server) flush(c *conntable.Conn) bool {
	for c.HasPending() {
		n, err := tcp.Write(c.Fd(), c.Front())
		if n > 0 {
			s.metrics.Add(control.BytesWritten, int64(n))
			if done := c.Consume(n); done != nil {
				s.bufs.PutBuffer(done)
			}
		}
		if err == nil {
			continue
		}
		switch {
		case api.IsInterrupted(err):
			continue
		case api.IsWouldBlock(err):
			return true
		}
		s.closeConn(c, err)
		return false
	}
	if c.WriteArmed() {
		if err := s.mux.Modify(c.Fd(), api.InterestRead); err != nil {
			s.closeConn(c, err)
			return false
		}
		c.SetWriteArmed(false)
	}
	return true
}

// closeConn destroys a connection: table removal, deregistration, then
// close. Deregistering first keeps a reused descriptor value from inheriting
// the old watch entry.
func (s *Server) closeConn(c *conntable.Conn, cause error) {
	fd := c.Fd()
	if _, ok := s.conns.Remove(fd); !ok {
		return
	}
	if err := s.mux.Deregister(fd); err != nil {
		s.log.Warn("deregister failed", "fd", fd, "err", err)
	}
	for _, b := range c.Drain() {
		s.bufs.PutBuffer(b)
	}
	if err := tcp.Close(fd); err != nil {
		s.log.Warn("close failed", "fd", fd, "err", err)
	}
	s.live.Add(-1)
	s.metrics.Add(control.ConnClosed, 1)
	s.metrics.Set(control.ConnActive, s.live.Load())

	lifetime := time.Since(c.Accepted())
	if errors.Is(cause, errPeerClosed) || errors.Is(cause, errShutdown) {
		s.log.Debug("connection closed", "fd", fd, "peer", c.Peer(), "lifetime", lifetime, "reason", cause)
		return
	}
	s.log.Warn("connection terminated", "fd", fd, "peer", c.Peer(), "lifetime", lifetime, "err", cause)
}
