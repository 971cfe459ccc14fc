//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// epollMux implements api.Multiplexer using Linux epoll.
type epollMux struct {
	epfd   int
	modes  map[int]api.TriggerMode // watch set; the trigger mode survives Modify
	events []unix.EpollEvent
	closed bool
}

// newEpoll creates a new epoll instance.
func newEpoll(maxEvents int) (*epollMux, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollMux{
		epfd:   epfd,
		modes:  make(map[int]api.TriggerMode),
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// epollMask translates interest and mode into epoll event bits.
// EPOLLERR and EPOLLHUP are always reported by the kernel.
func epollMask(interest api.Interest, mode api.TriggerMode) uint32 {
	var ev uint32
	if interest&api.InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if mode == api.TriggerEdge {
		ev |= unix.EPOLLET
	}
	return ev
}

func (m *epollMux) Supports(mode api.TriggerMode) bool {
	return mode == api.TriggerLevel || mode == api.TriggerEdge
}

// Register adds a file descriptor to the epoll watch list.
func (m *epollMux) Register(fd int, interest api.Interest, mode api.TriggerMode) error {
	switch {
	case m.closed:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrClosed}
	case fd < 0:
		return &api.RegistrationError{Op: "register", Fd: fd, Err: unix.EBADF}
	case !m.Supports(mode):
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrUnsupportedMode}
	}
	if _, ok := m.modes[fd]; ok {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: api.ErrAlreadyRegistered}
	}
	ev := unix.EpollEvent{Events: epollMask(interest, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return &api.RegistrationError{Op: "register", Fd: fd, Err: err}
	}
	m.modes[fd] = mode
	return nil
}

// Modify re-arms fd with a new interest set.
func (m *epollMux) Modify(fd int, interest api.Interest) error {
	if m.closed {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrClosed}
	}
	mode, ok := m.modes[fd]
	if !ok {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: api.ErrNotRegistered}
	}
	ev := unix.EpollEvent{Events: epollMask(interest, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return &api.RegistrationError{Op: "modify", Fd: fd, Err: err}
	}
	return nil
}

// Deregister removes a file descriptor from the epoll watch list. The watch
// set entry is dropped even if the kernel call fails, so a reused descriptor
// value can be registered again.
func (m *epollMux) Deregister(fd int) error {
	if m.closed {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrClosed}
	}
	if _, ok := m.modes[fd]; !ok {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: api.ErrNotRegistered}
	}
	delete(m.modes, fd)
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return &api.RegistrationError{Op: "deregister", Fd: fd, Err: err}
	}
	return nil
}

// Wait blocks in epoll_wait and translates the kernel events into batch.
func (m *epollMux) Wait(batch []api.ReadyEvent, timeoutMs int) (int, error) {
	if m.closed {
		return 0, &api.WaitError{Err: api.ErrClosed}
	}
	if len(batch) == 0 {
		return 0, &api.WaitError{Err: api.ErrInvalidArgument}
	}
	if len(m.events) < len(batch) {
		m.events = make([]unix.EpollEvent, len(batch))
	}
	raw := m.events[:len(batch)]
	if timeoutMs < 0 {
		timeoutMs = -1
	}

	var n int
	for {
		var err error
		n, err = unix.EpollWait(m.epfd, raw, timeoutMs)
		if err == nil {
			break
		}
		if api.IsInterrupted(err) {
			continue
		}
		return 0, &api.WaitError{Err: fmt.Errorf("epoll wait: %w", err)}
	}

	for i := 0; i < n; i++ {
		ev := raw[i].Events
		var flags api.EventFlags
		if ev&unix.EPOLLIN != 0 {
			flags |= api.EventRead
		}
		if ev&unix.EPOLLOUT != 0 {
			flags |= api.EventWrite
		}
		if ev&unix.EPOLLERR != 0 {
			flags |= api.EventError
		}
		if ev&unix.EPOLLHUP != 0 {
			flags |= api.EventHangup
		}
		batch[i] = api.ReadyEvent{Fd: int(raw[i].Fd), Flags: flags}
	}
	return n, nil
}

// Watching reports whether fd is currently in the watch set.
func (m *epollMux) Watching(fd int) bool {
	_, ok := m.modes[fd]
	return ok
}

// Len returns the number of watched descriptors.
func (m *epollMux) Len() int { return len(m.modes) }

// Close releases the epoll file descriptor.
func (m *epollMux) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.modes = nil
	return unix.Close(m.epfd)
}

func openEpoll(maxEvents int) (api.Multiplexer, error) {
	m, err := newEpoll(maxEvents)
	if err != nil {
		return nil, err
	}
	return m, nil
}
