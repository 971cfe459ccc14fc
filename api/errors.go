// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy for the echo loop: registration, wait and accept failures
// plus classification of transient OS conditions.

package api

import (
	"errors"
	"fmt"
	"syscall"
)

// Common errors used across the library.
var (
	ErrClosed            = errors.New("multiplexer is closed")
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	ErrNotRegistered     = errors.New("descriptor not registered")
	ErrUnsupportedMode   = errors.New("trigger mode not supported by backend")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// RegistrationError reports a failed register, modify or deregister call.
type RegistrationError struct {
	Op  string
	Fd  int
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s fd=%d: %v", e.Op, e.Fd, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// WaitError is an unrecoverable multiplexer wait failure. It stops the loop.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string { return "wait: " + e.Err.Error() }

func (e *WaitError) Unwrap() error { return e.Err }

// AcceptError is a failed accept on the listening endpoint. The loop logs
// and skips it.
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string { return "accept: " + e.Err.Error() }

func (e *AcceptError) Unwrap() error { return e.Err }

// IsWouldBlock reports whether err is the non-fatal "try again later" signal
// of a non-blocking descriptor.
func IsWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// IsInterrupted reports whether err is a signal interruption.
func IsInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}

// IsTransient reports whether err should be retried or ignored without any
// state change.
func IsTransient(err error) bool {
	return IsWouldBlock(err) || IsInterrupted(err) || errors.Is(err, syscall.ECONNABORTED)
}
