//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp - raw IPv4 listener.

package tcp

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Backlog is the listen queue length of every listener.
const Backlog = 5

// CreateListener opens an IPv4 stream socket with SO_REUSEADDR and
// SO_KEEPALIVE, binds it to all local addresses on port and marks it
// listening. Port 0 binds an ephemeral port. On failure it returns -1.
func CreateListener(port int) (int, error) {
	if port < 0 || port > 65535 {
		return -1, fmt.Errorf("tcp listen: invalid port %d", port)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("tcp socket: %w", err)
	}
	fail := func(op string, err error) (int, error) {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp %s port %d: %w", op, port, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return fail("setsockopt SO_KEEPALIVE", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		return fail("listen", err)
	}
	return fd, nil
}

// LocalPort returns the port a listener is bound to.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, fmt.Errorf("getsockname: unexpected address %T", sa)
}

// Accept takes one pending connection from a listener. nonblock puts the
// new descriptor in non-blocking mode atomically.
func Accept(lfd int, nonblock bool) (int, string, error) {
	flags := unix.SOCK_CLOEXEC
	if nonblock {
		flags |= unix.SOCK_NONBLOCK
	}
	fd, sa, err := unix.Accept4(lfd, flags)
	if err != nil {
		return -1, "", err
	}
	return fd, SockaddrString(sa), nil
}

// SockaddrString formats an IPv4/IPv6 socket address as host:port.
func SockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	}
	return "unknown"
}

// SetSendBuffer sets SO_SNDBUF on fd.
func SetSendBuffer(fd, size int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size); err != nil {
		return fmt.Errorf("setsockopt SO_SNDBUF: %w", err)
	}
	return nil
}

// SetNonblock toggles O_NONBLOCK on fd.
func SetNonblock(fd int, on bool) error { return unix.SetNonblock(fd, on) }

// Read reads from a connected descriptor. EAGAIN and EINTR are returned
// unwrapped so callers can classify them.
func Read(fd int, p []byte) (int, error) { return unix.Read(fd, p) }

// Write writes to a connected descriptor and may return a short count.
func Write(fd int, p []byte) (int, error) { return unix.Write(fd, p) }

// Close closes a descriptor.
func Close(fd int) error { return unix.Close(fd) }
