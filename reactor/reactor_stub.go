//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-echo/api"
)

var errPlatform = errors.New("reactor: this platform is not supported")

func openEpoll(int) (api.Multiplexer, error) { return nil, errPlatform }

func openPoll(int) (api.Multiplexer, error) { return nil, errPlatform }

func openSelect(int) (api.Multiplexer, error) { return nil, errPlatform }

// Waker is unavailable on this platform.
type Waker struct{}

// NewWaker returns an error on unsupported platforms.
func NewWaker() (*Waker, error) { return nil, errPlatform }

func (w *Waker) Fd() int      { return -1 }
func (w *Waker) Wake() error  { return errPlatform }
func (w *Waker) Drain() error { return errPlatform }
func (w *Waker) Close() error { return nil }
