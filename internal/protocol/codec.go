// Package protocol defines the wire format spoken with the orchestrator:
// length-prefixed binary messages carried over HTTPS with
// Content-Type application/octet-stream
package protocol

import (
	"encoding/binary"

	perr "nexusprover/internal/platform/errors"
)

// Encoder appends fields to a growing buffer. Variable-length fields are
// prefixed with a little-endian u32 byte count
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded message
func (e *Encoder) Bytes() []byte { return e.buf }

// U8 appends a single byte
func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

// U32 appends a little-endian u32
func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// U64 appends a little-endian u64
func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// PutBytes appends a length-prefixed byte string
func (e *Encoder) PutBytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// PutString appends a length-prefixed UTF-8 string
func (e *Encoder) PutString(s string) { e.PutBytes([]byte(s)) }

// List appends a u32 element count; callers then append each element
func (e *Encoder) List(n int) { e.U32(uint32(n)) }

// Decoder reads fields back out of a buffer. The first malformed read poisons
// the decoder; callers check Err once at the end
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder wraps a received message body
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Err returns the first decode failure, if any
func (d *Decoder) Err() error { return d.err }

// Remaining reports how many bytes have not been consumed
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) fail() {
	if d.err == nil {
		d.err = perr.Newf(perr.ErrorCodeDecode, "truncated message at offset %d", d.off)
	}
}

// U8 reads a single byte
func (d *Decoder) U8() uint8 {
	if d.err != nil || d.off+1 > len(d.buf) {
		d.fail()
		return 0
	}
	v := d.buf[d.off]
	d.off++
	return v
}

// U32 reads a little-endian u32
func (d *Decoder) U32() uint32 {
	if d.err != nil || d.off+4 > len(d.buf) {
		d.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

// U64 reads a little-endian u64
func (d *Decoder) U64() uint64 {
	if d.err != nil || d.off+8 > len(d.buf) {
		d.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v
}

// TakeBytes reads a length-prefixed byte string. The returned slice is a copy
func (d *Decoder) TakeBytes() []byte {
	n := int(d.U32())
	if d.err != nil || d.off+n > len(d.buf) {
		d.fail()
		return nil
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n
	return out
}

// TakeString reads a length-prefixed UTF-8 string
func (d *Decoder) TakeString() string { return string(d.TakeBytes()) }

// Len reads a u32 element count and sanity-checks it against the bytes left.
// Each element needs at least one byte of prefix, so anything larger than the
// remainder is a decode error, not an allocation request
func (d *Decoder) Len() int {
	n := int(d.U32())
	if d.err != nil {
		return 0
	}
	if n > len(d.buf)-d.off {
		d.fail()
		return 0
	}
	return n
}
