//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import "errors"

// Backlog is the listen queue length of every listener.
const Backlog = 5

var errPlatform = errors.New("tcp: raw listener is not supported on this platform")

// CreateListener is unavailable on this platform.
func CreateListener(int) (int, error) { return -1, errPlatform }

// LocalPort is unavailable on this platform.
func LocalPort(int) (int, error) { return 0, errPlatform }

// Accept is unavailable on this platform.
func Accept(int, bool) (int, string, error) { return -1, "", errPlatform }

// SetSendBuffer is unavailable on this platform.
func SetSendBuffer(int, int) error { return errPlatform }

// SetNonblock is unavailable on this platform.
func SetNonblock(int, bool) error { return errPlatform }

// Read is unavailable on this platform.
func Read(int, []byte) (int, error) { return 0, errPlatform }

// Write is unavailable on this platform.
func Write(int, []byte) (int, error) { return 0, errPlatform }

// Close is unavailable on this platform.
func Close(int) error { return errPlatform }
