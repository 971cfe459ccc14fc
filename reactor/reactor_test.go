//go:build linux
// +build linux

package reactor

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

var levelBackends = []Backend{BackendEpoll, BackendPoll, BackendSelect}

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func openMux(t *testing.T, b Backend) api.Multiplexer {
	t.Helper()
	m, err := New(b, 8)
	if err != nil {
		t.Fatalf("New(%s): %v", b, err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func waitOnce(t *testing.T, m api.Multiplexer) []api.ReadyEvent {
	t.Helper()
	batch := make([]api.ReadyEvent, 8)
	n, err := m.Wait(batch, 50)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return batch[:n]
}

func TestParseBackend(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Backend
		ok   bool
	}{
		{"epoll", BackendEpoll, true},
		{" POLL ", BackendPoll, true},
		{"select", BackendSelect, true},
		{"kqueue", "", false},
	} {
		got, err := ParseBackend(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseBackend(%q) = %q, %v", tc.in, got, err)
		}
	}
	if _, err := New("kqueue", 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("New(kqueue) error = %v", err)
	}
}

func TestRegisterErrors(t *testing.T) {
	for _, b := range levelBackends {
		t.Run(string(b), func(t *testing.T) {
			m := openMux(t, b)
			a, _ := socketPair(t)

			var regErr *api.RegistrationError
			if err := m.Register(-1, api.InterestRead, api.TriggerLevel); !errors.As(err, &regErr) {
				t.Fatalf("invalid fd: got %v", err)
			}
			if err := m.Register(a, api.InterestRead, api.TriggerLevel); err != nil {
				t.Fatalf("Register: %v", err)
			}
			err := m.Register(a, api.InterestRead, api.TriggerLevel)
			if !errors.As(err, &regErr) || !errors.Is(err, api.ErrAlreadyRegistered) {
				t.Errorf("duplicate register: got %v", err)
			}
			if err := m.Deregister(a); err != nil {
				t.Errorf("Deregister: %v", err)
			}
			if err := m.Deregister(a); !errors.Is(err, api.ErrNotRegistered) {
				t.Errorf("double deregister: got %v", err)
			}
			if err := m.Modify(a, api.InterestRead); !errors.Is(err, api.ErrNotRegistered) {
				t.Errorf("modify unregistered: got %v", err)
			}
		})
	}
}

func TestLevelOnlyBackendsRejectEdge(t *testing.T) {
	for _, b := range []Backend{BackendPoll, BackendSelect} {
		m := openMux(t, b)
		a, _ := socketPair(t)
		if m.Supports(api.TriggerEdge) {
			t.Fatalf("%s backend claims edge support", b)
		}
		if err := m.Register(a, api.InterestRead, api.TriggerEdge); !errors.Is(err, api.ErrUnsupportedMode) {
			t.Errorf("%s: got %v, want ErrUnsupportedMode", b, err)
		}
	}
}

func TestSelectRejectsLargeDescriptor(t *testing.T) {
	m := openMux(t, BackendSelect)
	a, _ := socketPair(t)
	high, err := unix.FcntlInt(uintptr(a), unix.F_DUPFD_CLOEXEC, fdSetSize)
	if err != nil {
		t.Skipf("cannot dup above FD_SETSIZE: %v", err)
	}
	defer unix.Close(high)
	var regErr *api.RegistrationError
	err = m.Register(high, api.InterestRead, api.TriggerLevel)
	if !errors.As(err, &regErr) || !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("fd %d: got %v", high, err)
	}
}

// A batch smaller than the ready set must still reach every ready
// descriptor over successive waits.
func TestSmallBatchRotates(t *testing.T) {
	for _, b := range levelBackends {
		t.Run(string(b), func(t *testing.T) {
			m := openMux(t, b)
			a, pa := socketPair(t)
			c, pc := socketPair(t)
			for _, fd := range []int{a, c} {
				if err := m.Register(fd, api.InterestRead, api.TriggerLevel); err != nil {
					t.Fatal(err)
				}
			}
			unix.Write(pa, []byte("a"))
			unix.Write(pc, []byte("c"))

			seen := map[int]int{}
			batch := make([]api.ReadyEvent, 1)
			for i := 0; i < 10; i++ {
				n, err := m.Wait(batch, 50)
				if err != nil || n != 1 {
					t.Fatalf("wait %d: n=%d err=%v", i, n, err)
				}
				seen[batch[0].Fd]++
			}
			if seen[a] == 0 || seen[c] == 0 {
				t.Errorf("ready descriptor starved: %v", seen)
			}
		})
	}
}

func TestWaitTimeoutEmpty(t *testing.T) {
	for _, b := range levelBackends {
		m := openMux(t, b)
		a, _ := socketPair(t)
		if err := m.Register(a, api.InterestRead, api.TriggerLevel); err != nil {
			t.Fatal(err)
		}
		if evs := waitOnce(t, m); len(evs) != 0 {
			t.Errorf("%s: expected empty batch, got %v", b, evs)
		}
	}
}

// Level-triggered descriptors stay ready until drained.
func TestLevelTriggeredRepeats(t *testing.T) {
	for _, b := range levelBackends {
		t.Run(string(b), func(t *testing.T) {
			m := openMux(t, b)
			a, peer := socketPair(t)
			if err := m.Register(a, api.InterestRead, api.TriggerLevel); err != nil {
				t.Fatal(err)
			}
			if _, err := unix.Write(peer, []byte("0123456789")); err != nil {
				t.Fatal(err)
			}
			buf := make([]byte, 4)
			for i := 0; i < 2; i++ {
				evs := waitOnce(t, m)
				if len(evs) != 1 || evs[0].Fd != a || !evs[0].Flags.Readable() {
					t.Fatalf("cycle %d: got %v", i, evs)
				}
				if _, err := unix.Read(a, buf); err != nil {
					t.Fatal(err)
				}
			}
		})
	}
}

// Edge-triggered descriptors are reported once per transition.
func TestEdgeTriggeredOnce(t *testing.T) {
	m := openMux(t, BackendEpoll)
	a, peer := socketPair(t)
	if err := m.Register(a, api.InterestRead, api.TriggerEdge); err != nil {
		t.Fatal(err)
	}
	if _, err := unix.Write(peer, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	if evs := waitOnce(t, m); len(evs) != 1 {
		t.Fatalf("first wait: got %v", evs)
	}
	buf := make([]byte, 4)
	if _, err := unix.Read(a, buf); err != nil {
		t.Fatal(err)
	}
	if evs := waitOnce(t, m); len(evs) != 0 {
		t.Errorf("partial read re-notified in edge mode: %v", evs)
	}
	if _, err := unix.Write(peer, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if evs := waitOnce(t, m); len(evs) != 1 {
		t.Errorf("new data not notified: %v", evs)
	}
}

func TestModifyKeepsMode(t *testing.T) {
	m := openMux(t, BackendEpoll)
	a, _ := socketPair(t)
	if err := m.Register(a, api.InterestRead, api.TriggerEdge); err != nil {
		t.Fatal(err)
	}
	if err := m.Modify(a, api.InterestRead|api.InterestWrite); err != nil {
		t.Fatal(err)
	}
	evs := waitOnce(t, m)
	if len(evs) != 1 || !evs[0].Flags.Writable() {
		t.Fatalf("expected writable event, got %v", evs)
	}
	if evs := waitOnce(t, m); len(evs) != 0 {
		t.Errorf("edge mode lost on modify: %v", evs)
	}
}

// select(2) has no hangup bit; a closed peer reads as end of stream.
func TestHangupReported(t *testing.T) {
	for _, b := range []Backend{BackendEpoll, BackendPoll} {
		m := openMux(t, b)
		a, peer := socketPair(t)
		if err := m.Register(a, api.InterestRead, api.TriggerLevel); err != nil {
			t.Fatal(err)
		}
		unix.Shutdown(peer, unix.SHUT_RDWR)
		unix.Shutdown(a, unix.SHUT_WR)
		evs := waitOnce(t, m)
		if len(evs) != 1 || !evs[0].Flags.Terminal() {
			t.Errorf("%s: expected hangup, got %v", b, evs)
		}
	}
}

func TestDeregisterStopsNotifications(t *testing.T) {
	for _, b := range levelBackends {
		m := openMux(t, b)
		a, peer := socketPair(t)
		c, _ := socketPair(t)
		if err := m.Register(a, api.InterestRead, api.TriggerLevel); err != nil {
			t.Fatal(err)
		}
		if err := m.Register(c, api.InterestRead, api.TriggerLevel); err != nil {
			t.Fatal(err)
		}
		if err := m.Deregister(a); err != nil {
			t.Fatal(err)
		}
		unix.Write(peer, []byte("late"))
		for _, ev := range waitOnce(t, m) {
			if ev.Fd == a {
				t.Errorf("%s: deregistered fd %d still reported", b, a)
			}
		}
	}
}

func TestClosedMultiplexer(t *testing.T) {
	m, err := New(BackendEpoll, 1)
	if err != nil {
		t.Fatal(err)
	}
	m.Close()
	var we *api.WaitError
	if _, err := m.Wait(make([]api.ReadyEvent, 1), 0); !errors.As(err, &we) {
		t.Errorf("Wait after Close: %v", err)
	}
	if err := m.Register(0, api.InterestRead, api.TriggerLevel); !errors.Is(err, api.ErrClosed) {
		t.Errorf("Register after Close: %v", err)
	}
}

func TestWaker(t *testing.T) {
	m := openMux(t, BackendEpoll)
	w, err := NewWaker()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Register(w.Fd(), api.InterestRead, api.TriggerLevel); err != nil {
		t.Fatal(err)
	}
	if evs := waitOnce(t, m); len(evs) != 0 {
		t.Fatalf("idle waker reported: %v", evs)
	}
	w.Wake()
	w.Wake()
	evs := waitOnce(t, m)
	if len(evs) != 1 || evs[0].Fd != w.Fd() {
		t.Fatalf("wake not reported: %v", evs)
	}
	if err := w.Drain(); err != nil {
		t.Fatal(err)
	}
	if evs := waitOnce(t, m); len(evs) != 0 {
		t.Errorf("drained waker still ready: %v", evs)
	}
	m.Deregister(w.Fd())
	w.Close()
	if err := w.Wake(); !errors.Is(err, api.ErrClosed) {
		t.Errorf("Wake after Close: %v", err)
	}
}
