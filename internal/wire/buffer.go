package wire

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a decode runs out of bytes mid-field.
var ErrShortBuffer = errors.New("wire: short buffer")

// writer accumulates an encoded message body.
type writer struct {
	buf []byte
}

func newWriter() *writer { return &writer{buf: make([]byte, 0, 64)} }

func (w *writer) Bytes() []byte { return w.buf }

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) varint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *writer) bytesField(b []byte) {
	w.varint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) stringField(s string) { w.bytesField([]byte(s)) }

// reader consumes an encoded message body, tolerating a short/truncated
// tail: reads past the end return ok=false without panicking so decoders can
// treat missing trailing fields as "absent" for backward compatibility.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

// Remaining reports how many bytes are left to read (the unread suffix is
// tolerated for forward compatibility — decoders simply stop consuming).
func (r *reader) Remaining() int { return len(r.buf) - r.pos }

func (r *reader) byteField() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *reader) u16() (uint16, bool) {
	if r.pos+2 > len(r.buf) {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, true
}

func (r *reader) u32() (uint32, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *reader) u64() (uint64, bool) {
	if r.pos+8 > len(r.buf) {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *reader) fixed(n int) ([]byte, bool) {
	if r.pos+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *reader) varint() (uint64, bool) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, false
	}
	r.pos += n
	return v, true
}

func (r *reader) bytesField() ([]byte, bool) {
	n, ok := r.varint()
	if !ok {
		return nil, false
	}
	return r.fixed(int(n))
}

func (r *reader) stringField() (string, bool) {
	b, ok := r.bytesField()
	if !ok {
		return "", false
	}
	return string(b), true
}

// rest returns every remaining byte, consuming it. Used for payload fields
// that run to the end of the frame instead of being length-prefixed.
func (r *reader) rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return append([]byte(nil), b...)
}
