// File: reactor/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer is the contiguous read/write byte buffer described in spec §3/§4.F:
// a small prependable header region (for later framing) plus a writable
// tail. Growth compacts the already-consumed prefix before reallocating.

package reactor

import (
	"encoding/binary"
	"fmt"
)

const (
	initialPrependSize = 8
	initialBufferSize  = 1024
)

// Buffer is a growable byte buffer with read/write cursors satisfying
// readPos <= writePos <= cap(data).
type Buffer struct {
	data     []byte
	readPos  int
	writePos int
}

// NewBuffer constructs an empty Buffer with a small prepend region.
func NewBuffer() *Buffer {
	return &Buffer{
		data:     make([]byte, initialPrependSize+initialBufferSize),
		readPos:  initialPrependSize,
		writePos: initialPrependSize,
	}
}

// ReadableBytes returns the number of unread bytes.
func (b *Buffer) ReadableBytes() int { return b.writePos - b.readPos }

// WritableBytes returns the number of bytes that can be written to the
// tail without a grow.
func (b *Buffer) WritableBytes() int { return len(b.data) - b.writePos }

// PrependableBytes returns the number of bytes available before readPos
// for in-place header prepending.
func (b *Buffer) PrependableBytes() int { return b.readPos }

// Peek returns a view of the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.data[b.readPos:b.writePos] }

// Retrieve consumes n bytes from the front of the readable region.
func (b *Buffer) Retrieve(n int) {
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.readPos += n
}

// RetrieveAll consumes all readable bytes, resetting cursors.
func (b *Buffer) RetrieveAll() {
	b.readPos = initialPrependSize
	b.writePos = initialPrependSize
}

// RetrieveAsBytes consumes and returns a copy of all readable bytes.
func (b *Buffer) RetrieveAsBytes() []byte {
	out := make([]byte, b.ReadableBytes())
	copy(out, b.Peek())
	b.RetrieveAll()
	return out
}

// Append writes data to the tail, growing the buffer if necessary.
func (b *Buffer) Append(data []byte) {
	b.ensureWritable(len(data))
	b.writePos += copy(b.data[b.writePos:], data)
}

// Prepend writes data just before readPos in O(1), for cases where a
// caller wants to add a frame header to already-buffered payload without
// a copy of the payload itself. Panics if PrependableBytes() < len(data);
// callers reserve headroom up front via NewBuffer's prepend region.
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic("reactor: Prepend: insufficient prependable space")
	}
	b.readPos -= len(data)
	copy(b.data[b.readPos:], data)
}

// ensureWritable grows or compacts so that WritableBytes() >= n.
func (b *Buffer) ensureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.PrependableBytes()+b.WritableBytes() >= n+initialPrependSize {
		// Compact: slide the readable region down to the prepend boundary.
		readable := b.ReadableBytes()
		copy(b.data[initialPrependSize:], b.data[b.readPos:b.writePos])
		b.readPos = initialPrependSize
		b.writePos = b.readPos + readable
		return
	}
	newCap := b.writePos + n + initialPrependSize
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.writePos])
	b.data = grown
}

// ReadFromFD performs a single scatter-read syscall into the buffer's
// writable tail plus a stack-allocated spillover, so a large readable fd
// can be drained in one syscall even if it exceeds the current tail
// capacity (spec §4.F). Returns bytes read, 0 on peer close, and a
// wrapped syscall error (including EAGAIN) otherwise.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	var spillover [65536]byte
	iov := [2][]byte{b.data[b.writePos:], spillover[:]}

	n, err := readv(fd, iov[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	tailCap := len(iov[0])
	if n <= tailCap {
		b.writePos += n
		return n, nil
	}
	b.writePos += tailCap
	extra := n - tailCap
	b.Append(spillover[:extra])
	return n, nil
}

func readv(fd int, iov [][]byte) (int, error) {
	n, err := readvPlatform(fd, iov)
	if err != nil {
		return 0, fmt.Errorf("reactor: readv: %w", err)
	}
	return n, nil
}

// PrependUint32 writes a big-endian length header directly in the
// prepend region ahead of already-appended payload bytes.
func (b *Buffer) PrependUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.Prepend(tmp[:])
}
