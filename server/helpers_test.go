//go:build linux
// +build linux

package server

import (
	"net"
	"strconv"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/internal/logger"
	"github.com/momentics/hioload-echo/reactor"
)

type variant struct {
	name    string
	backend reactor.Backend
	mode    api.TriggerMode
}

var variants = []variant{
	{"epoll-level", reactor.BackendEpoll, api.TriggerLevel},
	{"epoll-edge", reactor.BackendEpoll, api.TriggerEdge},
	{"poll-level", reactor.BackendPoll, api.TriggerLevel},
	{"select-level", reactor.BackendSelect, api.TriggerLevel},
}

func newTestServer(t testing.TB, v variant, opts ...ServerOption) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backend = v.backend
	cfg.Mode = v.mode
	opts = append([]ServerOption{WithLogger(logger.Discard())}, opts...)
	s, err := NewServer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dial(t testing.TB, s *Server, opts ...func(fd uintptr)) *net.TCPConn {
	t.Helper()
	d := net.Dialer{Timeout: 2 * time.Second}
	if len(opts) > 0 {
		d.Control = func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				for _, o := range opts {
					o(fd)
				}
			})
		}
	}
	c, err := d.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port())))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c.(*net.TCPConn)
}

func withRecvBuffer(size int) func(uintptr) {
	return func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	}
}

// spin runs loop iterations on the test goroutine until cond holds.
func spin(t *testing.T, s *Server, cond func() bool) {
	t.Helper()
	batch := make([]api.ReadyEvent, 16)
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		if _, err := s.turn(batch, 10); err != nil {
			t.Fatalf("turn: %v", err)
		}
	}
}

// idle runs n empty-handed iterations.
func idle(t *testing.T, s *Server, n int) {
	t.Helper()
	batch := make([]api.ReadyEvent, 16)
	for i := 0; i < n; i++ {
		if _, err := s.turn(batch, 10); err != nil {
			t.Fatalf("turn: %v", err)
		}
	}
}

// readFull reads exactly n bytes while driving the loop.
func readFull(t *testing.T, s *Server, c net.Conn, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 4096)
	spin(t, s, func() bool {
		for len(out) < n {
			c.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
			m, err := c.Read(buf[:min(len(buf), n-len(out))])
			out = append(out, buf[:m]...)
			if err != nil {
				break
			}
		}
		return len(out) == n
	})
	return out
}

type watcher interface {
	Watching(fd int) bool
}
