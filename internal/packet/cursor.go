package packet

import "encoding/binary"

// Cursor reads fixed-layout fields from the front of a byte slice.
// Every read is bounds checked; a read past the end returns false
// and leaves the cursor where it was.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Has reports whether at least n unread bytes remain.
func (c *Cursor) Has(n int) bool {
	return n >= 0 && c.Remaining() >= n
}

// Bytes returns the unread bytes without consuming them.
func (c *Cursor) Bytes() []byte {
	return c.buf[c.off:]
}

// Peek returns the next n bytes without consuming them.
func (c *Cursor) Peek(n int) ([]byte, bool) {
	if !c.Has(n) {
		return nil, false
	}
	return c.buf[c.off : c.off+n], true
}

// Skip consumes n bytes.
func (c *Cursor) Skip(n int) bool {
	if !c.Has(n) {
		return false
	}
	c.off += n
	return true
}

// Uint8 consumes one byte.
func (c *Cursor) Uint8() (uint8, bool) {
	if !c.Has(1) {
		return 0, false
	}
	v := c.buf[c.off]
	c.off++
	return v, true
}

// Uint16 consumes a big-endian 16-bit value.
func (c *Cursor) Uint16() (uint16, bool) {
	if !c.Has(2) {
		return 0, false
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, true
}

// Uint32 consumes a big-endian 32-bit value.
func (c *Cursor) Uint32() (uint32, bool) {
	if !c.Has(4) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, true
}

// Next consumes n bytes and returns them.
func (c *Cursor) Next(n int) ([]byte, bool) {
	b, ok := c.Peek(n)
	if ok {
		c.off += n
	}
	return b, ok
}

// writer appends fixed-layout fields to a preallocated buffer.
// Callers size the buffer up front, so writes never grow it.
type writer struct {
	buf []byte
	off int
}

func (w *writer) uint8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) uint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) uint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}
