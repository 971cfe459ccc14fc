//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - eventfd waker.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// Waker is a descriptor that another goroutine can make readable to
// interrupt a blocked Wait. Register Fd with level-triggered read interest.
type Waker struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// NewWaker creates a non-blocking eventfd.
func NewWaker() (*Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &Waker{fd: fd}, nil
}

// Fd returns the descriptor to register with the multiplexer.
func (w *Waker) Fd() int { return w.fd }

// Wake makes Fd readable. Safe for concurrent use and after Close.
func (w *Waker) Wake() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return api.ErrClosed
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	for {
		_, err := unix.Write(w.fd, b[:])
		switch {
		case err == nil, api.IsWouldBlock(err):
			// counter saturated; the descriptor is already readable
			return nil
		case api.IsInterrupted(err):
			continue
		default:
			return fmt.Errorf("eventfd write: %w", err)
		}
	}
}

// Drain resets the counter so the descriptor stops being readable.
func (w *Waker) Drain() error {
	var b [8]byte
	for {
		_, err := unix.Read(w.fd, b[:])
		switch {
		case err == nil, api.IsWouldBlock(err):
			return nil
		case api.IsInterrupted(err):
			continue
		default:
			return fmt.Errorf("eventfd read: %w", err)
		}
	}
}

// Close releases the eventfd. Later Wake calls return api.ErrClosed instead
// of touching a descriptor number that may have been reused.
func (w *Waker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return unix.Close(w.fd)
}
