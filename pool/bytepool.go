// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import "sync"

// BytePool recycles fixed-size byte buffers.
type BytePool struct {
	size int
	p    sync.Pool
}

// NewBytePool returns a pool of buffers of length size.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	b := &BytePool{size: size}
	b.p.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return b
}

// Size returns the pooled buffer length.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of length Size.
func (b *BytePool) GetBuffer() []byte {
	return (*b.p.Get().(*[]byte))[:b.size]
}

// GetSized returns a buffer of length n. Requests larger than Size are
// allocated directly and are dropped by PutBuffer.
func (b *BytePool) GetSized(n int) []byte {
	if n > b.size {
		return make([]byte, n)
	}
	return b.GetBuffer()[:n]
}

// PutBuffer returns a buffer to the pool.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.p.Put(&buf)
}
