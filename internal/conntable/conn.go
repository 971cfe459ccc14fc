// File: internal/conntable/conn.go
// Author: momentics <momentics@gmail.com>

package conntable

import (
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-echo/api"
)

// chunk is an owned byte slice with a write offset.
type chunk struct {
	buf []byte
	off int
}

// Conn is the state kept for one accepted descriptor.
type Conn struct {
	fd       int
	mode     api.TriggerMode
	peer     string
	accepted time.Time

	pending      *queue.Queue // of *chunk
	pendingBytes int
	writeArmed   bool
}

// Fd returns the connection descriptor.
func (c *Conn) Fd() int { return c.fd }

// Mode returns the trigger mode the connection was registered with.
func (c *Conn) Mode() api.TriggerMode { return c.mode }

// Peer returns the remote address as text.
func (c *Conn) Peer() string { return c.peer }

// Accepted returns the accept timestamp.
func (c *Conn) Accepted() time.Time { return c.accepted }

// WriteArmed reports whether write interest is currently registered.
func (c *Conn) WriteArmed() bool { return c.writeArmed }

// SetWriteArmed records the current write interest.
func (c *Conn) SetWriteArmed(v bool) { c.writeArmed = v }

// HasPending reports whether echo bytes are waiting to be written.
func (c *Conn) HasPending() bool { return c.pending != nil && c.pending.Length() > 0 }

// PendingBytes returns the number of unwritten echo bytes.
func (c *Conn) PendingBytes() int { return c.pendingBytes }

// Defer queues buf for a later write. The connection takes ownership of buf
// until Consume or Drain hands it back.
func (c *Conn) Defer(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if c.pending == nil {
		c.pending = queue.New()
	}
	c.pending.Add(&chunk{buf: buf})
	c.pendingBytes += len(buf)
}

// Front returns the unwritten bytes of the oldest queued chunk, or nil.
func (c *Conn) Front() []byte {
	if !c.HasPending() {
		return nil
	}
	ch := c.pending.Peek().(*chunk)
	return ch.buf[ch.off:]
}

// Consume marks n bytes of Front as written. When the chunk is exhausted it
// is removed and its buffer returned for recycling; otherwise nil is returned.
func (c *Conn) Consume(n int) []byte {
	if !c.HasPending() || n <= 0 {
		return nil
	}
	ch := c.pending.Peek().(*chunk)
	if rest := len(ch.buf) - ch.off; n > rest {
		n = rest
	}
	ch.off += n
	c.pendingBytes -= n
	if ch.off < len(ch.buf) {
		return nil
	}
	c.pending.Remove()
	return ch.buf
}

// Drain removes every queued chunk and returns their buffers.
func (c *Conn) Drain() [][]byte {
	if !c.HasPending() {
		return nil
	}
	out := make([][]byte, 0, c.pending.Length())
	for c.pending.Length() > 0 {
		out = append(out, c.pending.Remove().(*chunk).buf)
	}
	c.pendingBytes = 0
	return out
}
