//go:build linux
// +build linux

package server

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logger"
	"github.com/momentics/hioload-echo/reactor"
	"github.com/momentics/hioload-echo/transport/tcp"
)

// Failed accepts are counted and logged under the throttle, and the loop
// keeps serving.
func TestAcceptErrorSkipped(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			var logs bytes.Buffer
			s := newTestServer(t, v, WithLogger(logger.New(&logs, slog.LevelWarn)))
			s.acceptLog = rate.NewLimiter(0, 2)
			failures := 5
			s.accept = func(lfd int, nonblock bool) (int, string, error) {
				if failures > 0 {
					failures--
					return -1, "", unix.ECONNABORTED
				}
				return tcp.Accept(lfd, nonblock)
			}

			c := dial(t, s)
			spin(t, s, func() bool { return s.ConnCount() == 1 })
			if got := s.Metrics().Get(control.AcceptErrors); got != 5 {
				t.Errorf("accept.errors = %d, want 5", got)
			}
			if got := strings.Count(logs.String(), "accept failed"); got != 2 {
				t.Errorf("logged %d accept failures, want 2:\n%s", got, logs.String())
			}
			if s.suppressed != 3 {
				t.Errorf("suppressed = %d, want 3", s.suppressed)
			}
			c.Write([]byte("ok"))
			if got := readFull(t, s, c, 2); string(got) != "ok" {
				t.Errorf("echo after accept errors = %q", got)
			}

			s.acceptLog = rate.NewLimiter(rate.Inf, 1)
			failures = 1
			dial(t, s)
			spin(t, s, func() bool { return s.ConnCount() == 2 })
			if !strings.Contains(logs.String(), "suppressed=3") {
				t.Errorf("suppressed count not reported:\n%s", logs.String())
			}
			if s.suppressed != 0 {
				t.Errorf("suppressed = %d after report", s.suppressed)
			}
		})
	}
}

// A reset from the peer closes the connection and removes it from the
// readiness set.
func TestResetClosesConnection(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			var logs bytes.Buffer
			terminal := false
			s := newTestServer(t, v,
				WithLogger(logger.New(&logs, slog.LevelWarn)),
				WithEventObserver(func(ev api.ReadyEvent) {
					if ev.Flags.Terminal() {
						terminal = true
					}
				}))
			c := dial(t, s)
			spin(t, s, func() bool { return s.ConnCount() == 1 })
			fd := s.conns.Fds()[0]

			if err := c.SetLinger(0); err != nil {
				t.Fatal(err)
			}
			c.Close()
			spin(t, s, func() bool { return s.ConnCount() == 0 })

			if s.mux.(watcher).Watching(fd) {
				t.Errorf("fd %d still in readiness set", fd)
			}
			if got := s.Metrics().Get(control.ConnClosed); got != 1 {
				t.Errorf("conn.closed = %d", got)
			}
			if !strings.Contains(logs.String(), "connection terminated") {
				t.Errorf("reset not logged as abnormal close:\n%s", logs.String())
			}
			// select(2) reports the reset as readable; the read then fails.
			if v.backend != reactor.BackendSelect && !terminal {
				t.Error("reset did not produce error or hangup flags")
			}
		})
	}
}
