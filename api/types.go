// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import (
	"fmt"
	"strings"
)

// TriggerMode selects the notification contract for a registered descriptor.
type TriggerMode uint8

const (
	// TriggerLevel reports a descriptor on every wait while it stays ready.
	TriggerLevel TriggerMode = iota
	// TriggerEdge reports a descriptor once per not-ready to ready transition.
	// Handlers must drain it until the OS reports would-block.
	TriggerEdge
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerLevel:
		return "level"
	case TriggerEdge:
		return "edge"
	default:
		return fmt.Sprintf("TriggerMode(%d)", uint8(m))
	}
}

// ParseTriggerMode converts "level" or "edge" into a TriggerMode.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "level", "lt":
		return TriggerLevel, nil
	case "edge", "et":
		return TriggerEdge, nil
	}
	return 0, fmt.Errorf("%w: unknown trigger mode %q", ErrInvalidArgument, s)
}

// Interest is the set of event classes a descriptor is watched for.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// EventFlags are the readiness classes reported for one descriptor.
type EventFlags uint8

const (
	EventRead EventFlags = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Readable reports whether the read class is set.
func (f EventFlags) Readable() bool { return f&EventRead != 0 }

// Writable reports whether the write class is set.
func (f EventFlags) Writable() bool { return f&EventWrite != 0 }

// Terminal reports whether the OS flagged an error or hangup.
func (f EventFlags) Terminal() bool { return f&(EventError|EventHangup) != 0 }

func (f EventFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&EventRead != 0 {
		parts = append(parts, "read")
	}
	if f&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if f&EventError != 0 {
		parts = append(parts, "error")
	}
	if f&EventHangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}
