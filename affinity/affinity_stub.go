//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "errors"

var errUnsupported = errors.New("affinity: not supported on this platform")

func setAffinityPlatform(int) error { return errUnsupported }

// Current is unavailable on this platform.
func Current() ([]int, error) { return nil, errUnsupported }
