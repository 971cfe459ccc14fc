// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract Readiness Multiplexer used by the event loop.
// Concrete strategies (epoll, poll) live in package reactor.

package api

// ReadyEvent is one entry of a ready batch returned by Multiplexer.Wait.
type ReadyEvent struct {
	Fd    int        // watched descriptor
	Flags EventFlags // readiness classes reported by the OS
}

// Multiplexer wraps an OS readiness-notification facility.
//
// Implementations are not safe for concurrent use; a single loop goroutine
// owns the multiplexer and every descriptor registered with it.
type Multiplexer interface {
	// Register adds fd to the watch set. It fails with *RegistrationError if
	// fd is invalid, already registered, or mode is not supported.
	Register(fd int, interest Interest, mode TriggerMode) error

	// Modify replaces the interest set of a registered fd, keeping its trigger mode.
	Modify(fd int, interest Interest) error

	// Deregister removes fd from the watch set. It must be called before fd
	// is closed.
	Deregister(fd int) error

	// Wait blocks until at least one descriptor is ready or timeoutMs elapses
	// (timeoutMs < 0 blocks forever) and fills batch. Signal interruptions are
	// retried internally. Any other failure is a *WaitError.
	Wait(batch []ReadyEvent, timeoutMs int) (int, error)

	// Supports reports whether the strategy can deliver the given trigger mode.
	Supports(mode TriggerMode) bool

	// Close releases the underlying OS handle.
	Close() error
}
