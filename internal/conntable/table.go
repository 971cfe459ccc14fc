// File: internal/conntable/table.go
// Author: momentics <momentics@gmail.com>

package conntable

import (
	"sort"
	"time"

	"github.com/momentics/hioload-echo/api"
)

// Table maps live descriptors to connection state.
type Table struct {
	conns map[int]*Conn
}

// New creates an empty table.
func New() *Table {
	return &Table{conns: make(map[int]*Conn)}
}

// Insert adds a connection for fd. It fails with api.ErrAlreadyRegistered if
// fd is still live, which would mean a close was not paired with a removal.
func (t *Table) Insert(fd int, mode api.TriggerMode, peer string) (*Conn, error) {
	if _, ok := t.conns[fd]; ok {
		return nil, &api.RegistrationError{Op: "insert", Fd: fd, Err: api.ErrAlreadyRegistered}
	}
	c := &Conn{fd: fd, mode: mode, peer: peer, accepted: time.Now()}
	t.conns[fd] = c
	return c, nil
}

// Get looks up the connection for fd.
func (t *Table) Get(fd int) (*Conn, bool) {
	c, ok := t.conns[fd]
	return c, ok
}

// Remove deletes fd and returns its connection.
func (t *Table) Remove(fd int) (*Conn, bool) {
	c, ok := t.conns[fd]
	if ok {
		delete(t.conns, fd)
	}
	return c, ok
}

// Len returns the number of live connections.
func (t *Table) Len() int { return len(t.conns) }

// Fds returns the live descriptors in ascending order.
func (t *Table) Fds() []int {
	fds := make([]int, 0, len(t.conns))
	for fd := range t.conns {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}
