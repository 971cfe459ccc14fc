//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - poll(2) implementation. The watch set is an array of
// pollfd records rescanned on every wait; only level-triggered delivery is
// possible.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// pollMux implements api.Multiplexer on top of poll(2).
type pollMux struct {
	fds    []unix.PollFd
	index  map[int]int // fd -> position in fds
	next   int         // scan start, rotated past the last reported entry
	closed bool
}

func newPoll(maxEvents int) (*pollMux, error) {
	return &pollMux{
		fds:   make([]unix.PollFd, 0, maxEvents),
		index: make(map[int]int),
	}, nil
}

func pollMask(interest api.Interest) int16 {
	var ev int16
	if interest&api.InterestRead != 0 {
		ev |= unix.POLLIN
	}
	if interest&api.InterestWrite != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func (m *pollMux) Supports(mode api.TriggerMode) bool {
	return mode == api.TriggerLevel
}

func (m *pollMux) Register(fd int, interest api.Interest, mode api.TriggerMode) error {
	switch {
	case m.closed:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrClosed}
	case fd < 0:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: unix.EBADF}
	case !m.Supports(mode):
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrUnsupportedMode}
	}
	if _, ok := m.index[fd]; ok {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrAlreadyRegistered}
	}
	// poll(2) silently reports POLLNVAL for bad descriptors; check up front so
	// registration fails the same way it does with epoll.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: err}
	}
	m.index[fd] = len(m.fds)
	m.fds = append(m.fds, unix.PollFd{Fd: int32(fd), Events: pollMask(interest)})
	return nil
}

func (m *pollMux) Modify(fd int, interest api.Interest) error {
	if m.closed {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrClosed}
	}
	i, ok := m.index[fd]
	if !ok {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrNotRegistered}
	}
	m.fds[i].Events = pollMask(interest)
	return nil
}

// Deregister swaps the last record into the freed slot.
func (m *pollMux) Deregister(fd int) error {
	if m.closed {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrClosed}
	}
	i, ok := m.index[fd]
	if !ok {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrNotRegistered}
	}
	last := len(m.fds) - 1
	if i != last {
		m.fds[i] = m.fds[last]
		m.index[int(m.fds[i].Fd)] = i
	}
	m.fds = m.fds[:last]
	delete(m.index, fd)
	return nil
}

func (m *pollMux) Wait(batch []api.ReadyEvent, timeoutMs int) (int, error) {
	if m.closed {
		return 0, &api.WaitError{Err: api.ErrClosed}
	}
	if len(batch) == 0 {
		return 0, &api.WaitError{Err: api.ErrInvalidArgument}
	}
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	for i := range m.fds {
		m.fds[i].Revents = 0
	}
	for {
		_, err := unix.Poll(m.fds, timeoutMs)
		if err == nil {
			break
		}
		if api.IsInterrupted(err) {
			continue
		}
		return 0, &api.WaitError{Err: fmt.Errorf("poll: %w", err)}
	}

	n, last := 0, -1
	total := len(m.fds)
	for i := 0; i < total && n < len(batch); i++ {
		j := (m.next + i) % total
		rev := m.fds[j].Revents
		if rev == 0 {
			continue
		}
		var flags api.EventFlags
		if rev&unix.POLLIN != 0 {
			flags |= api.EventRead
		}
		if rev&unix.POLLOUT != 0 {
			flags |= api.EventWrite
		}
		if rev&(unix.POLLERR|unix.POLLNVAL) != 0 {
			flags |= api.EventError
		}
		if rev&unix.POLLHUP != 0 {
			flags |= api.EventHangup
		}
		batch[n] = api.ReadyEvent{Fd: int(m.fds[j].Fd), Flags: flags}
		n++
		last = j
	}
	if last >= 0 {
		m.next = (last + 1) % total
	}
	return n, nil
}

// Watching reports whether fd is currently in the watch set.
func (m *pollMux) Watching(fd int) bool {
	_, ok := m.index[fd]
	return ok
}

// Len returns the number of watched descriptors.
func (m *pollMux) Len() int { return len(m.fds) }

// Close drops the watch set. poll(2) owns no kernel handle.
func (m *pollMux) Close() error {
	m.closed = true
	m.fds = nil
	m.index = nil
	return nil
}

func openPoll(maxEvents int) (api.Multiplexer, error) {
	return newPoll(maxEvents)
}
