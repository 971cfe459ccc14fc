//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - select(2) implementation. Read and write sets are rebuilt
// from the watch list before every call; descriptors must stay below
// FD_SETSIZE and only level-triggered delivery is possible.

package reactor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// fdSetSize is FD_SETSIZE: one bit per descriptor in unix.FdSet.
const fdSetSize = int(unsafe.Sizeof(unix.FdSet{})) * 8

type selectWatch struct {
	fd       int
	interest api.Interest
}

// selectMux implements api.Multiplexer on top of select(2).
type selectMux struct {
	watch  []selectWatch
	index  map[int]int // fd -> position in watch
	next   int
	rset   unix.FdSet
	wset   unix.FdSet
	closed bool
}

func newSelect(maxEvents int) (*selectMux, error) {
	return &selectMux{
		watch: make([]selectWatch, 0, maxEvents),
		index: make(map[int]int),
	}, nil
}

func (m *selectMux) Supports(mode api.TriggerMode) bool {
	return mode == api.TriggerLevel
}

func (m *selectMux) Register(fd int, interest api.Interest, mode api.TriggerMode) error {
	switch {
	case m.closed:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrClosed}
	case fd < 0:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: unix.EBADF}
	case fd >= fdSetSize:
		return &api.RegistrationError{Op: "register", Fd: fd,
			Err: fmt.Errorf("%w: descriptor exceeds FD_SETSIZE %d", api.ErrInvalidArgument, fdSetSize)}
	case !m.Supports(mode):
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrUnsupportedMode}
	}
	if _, ok := m.index[fd]; ok {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrAlreadyRegistered}
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: err}
	}
	m.index[fd] = len(m.watch)
	m.watch = append(m.watch, selectWatch{fd: fd, interest: interest})
	return nil
}

func (m *selectMux) Modify(fd int, interest api.Interest) error {
	if m.closed {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrClosed}
	}
	i, ok := m.index[fd]
	if !ok {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrNotRegistered}
	}
	m.watch[i].interest = interest
	return nil
}

func (m *selectMux) Deregister(fd int) error {
	if m.closed {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrClosed}
	}
	i, ok := m.index[fd]
	if !ok {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrNotRegistered}
	}
	last := len(m.watch) - 1
	if i != last {
		m.watch[i] = m.watch[last]
		m.index[m.watch[i].fd] = i
	}
	m.watch = m.watch[:last]
	delete(m.index, fd)
	return nil
}

// Wait reports readable and writable descriptors. select(2) has no separate
// hangup indication: a closed peer shows up as readable and the following
// read returns end of stream or the socket error.
func (m *selectMux) Wait(batch []api.ReadyEvent, timeoutMs int) (int, error) {
	if m.closed {
		return 0, &api.WaitError{Err: api.ErrClosed}
	}
	if len(batch) == 0 {
		return 0, &api.WaitError{Err: api.ErrInvalidArgument}
	}
	for {
		maxFd := m.fill()
		var tv *unix.Timeval
		if timeoutMs >= 0 {
			t := unix.NsecToTimeval(int64(timeoutMs) * 1e6)
			tv = &t
		}
		_, err := unix.Select(maxFd+1, &m.rset, &m.wset, nil, tv)
		if err == nil {
			break
		}
		if api.IsInterrupted(err) {
			continue
		}
		return 0, &api.WaitError{Err: fmt.Errorf("select: %w", err)}
	}

	n, last := 0, -1
	total := len(m.watch)
	for i := 0; i < total && n < len(batch); i++ {
		j := (m.next + i) % total
		fd := m.watch[j].fd
		var flags api.EventFlags
		if m.rset.IsSet(fd) {
			flags |= api.EventRead
		}
		if m.wset.IsSet(fd) {
			flags |= api.EventWrite
		}
		if flags == 0 {
			continue
		}
		batch[n] = api.ReadyEvent{Fd: fd, Flags: flags}
		n++
		last = j
	}
	if last >= 0 {
		m.next = (last + 1) % total
	}
	return n, nil
}

// fill rebuilds the interest sets and returns the highest watched fd, or -1.
func (m *selectMux) fill() int {
	m.rset.Zero()
	m.wset.Zero()
	maxFd := -1
	for _, w := range m.watch {
		if w.interest&api.InterestRead != 0 {
			m.rset.Set(w.fd)
		}
		if w.interest&api.InterestWrite != 0 {
			m.wset.Set(w.fd)
		}
		if w.fd > maxFd {
			maxFd = w.fd
		}
	}
	return maxFd
}

// Watching reports whether fd is currently in the watch set.
func (m *selectMux) Watching(fd int) bool {
	_, ok := m.index[fd]
	return ok
}

// Len returns the number of watched descriptors.
func (m *selectMux) Len() int { return len(m.watch) }

// Close drops the watch set. select(2) owns no kernel handle.
func (m *selectMux) Close() error {
	m.closed = true
	m.watch = nil
	m.index = nil
	return nil
}

func openSelect(maxEvents int) (api.Multiplexer, error) {
	return newSelect(maxEvents)
}
