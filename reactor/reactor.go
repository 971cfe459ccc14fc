// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral backend selection for the readiness multiplexer.

package reactor

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-echo/api"
)

// Backend names a concrete multiplexer strategy.
type Backend string

const (
	BackendEpoll  Backend = "epoll"
	BackendPoll   Backend = "poll"
	BackendSelect Backend = "select"
)

// ParseBackend converts a user-supplied name into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendEpoll, BackendPoll, BackendSelect:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown backend %q", api.ErrInvalidArgument, s)
}

// New constructs the multiplexer for backend. maxEvents sizes the initial
// kernel event buffer; Wait grows it on demand.
func New(backend Backend, maxEvents int) (api.Multiplexer, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	var (
		m   api.Multiplexer
		err error
	)
	switch backend {
	case BackendEpoll:
		m, err = openEpoll(maxEvents)
	case BackendPoll:
		m, err = openPoll(maxEvents)
	case BackendSelect:
		m, err = openSelect(maxEvents)
	default:
		return nil, fmt.Errorf("reactor: %w: backend %q", api.ErrInvalidArgument, backend)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
