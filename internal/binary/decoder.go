package binary

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads little-endian fields from a byte slice. After the first
// failure every read returns zero and Err reports what went wrong.
type Decoder struct {
	buf   []byte
	off   int
	sizes Sizes
	err   error
}

// NewDecoder returns a Decoder positioned at the start of b.
func NewDecoder(b []byte, s Sizes) *Decoder {
	return &Decoder{buf: b, sizes: s}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error { return d.err }

// Sizes returns the address and length widths.
func (d *Decoder) Sizes() Sizes { return d.sizes }

// Pos returns the current offset into the slice.
func (d *Decoder) Pos() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	if d.off > len(d.buf) {
		return 0
	}
	return len(d.buf) - d.off
}

// Fail records err unless an earlier error is already set.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, d.Remaining())
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Skip advances n bytes.
func (d *Decoder) Skip(n int) { d.take(n) }

// Seek moves to an absolute offset within the slice.
func (d *Decoder) Seek(off int) {
	if d.err == nil && (off < 0 || off > len(d.buf)) {
		d.err = fmt.Errorf("%w: seek to %d in %d bytes", ErrTruncated, off, len(d.buf))
		return
	}
	d.off = off
}

// Since returns the bytes consumed from offset from up to the current
// position.
func (d *Decoder) Since(from int) []byte {
	if from < 0 || from > d.off || d.off > len(d.buf) {
		return nil
	}
	return d.buf[from:d.off]
}

// Bytes returns the next n bytes without copying.
func (d *Decoder) Bytes(n int) []byte { return d.take(n) }

// Signature consumes len(sig) bytes and fails with ErrSignature if they
// differ from sig.
func (d *Decoder) Signature(sig string) {
	b := d.take(len(sig))
	if d.err == nil && string(b) != sig {
		d.err = fmt.Errorf("%w: got %q, want %q", ErrSignature, b, sig)
	}
}

// U8 reads one byte.
func (d *Decoder) U8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

// U16 reads a 16-bit value.
func (d *Decoder) U16() uint16 {
	if b := d.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// U32 reads a 32-bit value.
func (d *Decoder) U32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// U64 reads a 64-bit value.
func (d *Decoder) U64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Uint reads an n-byte value, 0 < n <= 8.
func (d *Decoder) Uint(n int) uint64 {
	if n > 8 {
		d.Fail(fmt.Errorf("%w: %d-byte integer", ErrUnsupported, n))
		return 0
	}
	return Uint(d.take(n))
}

// Addr reads an address at the file's offset width. The undefined address
// is returned as Undefined whatever the width.
func (d *Decoder) Addr() uint64 {
	v := d.Uint(d.sizes.Offset)
	if d.err == nil && d.sizes.IsUndefined(v) {
		return Undefined
	}
	return v
}

// Length reads a length at the file's length width.
func (d *Decoder) Length() uint64 { return d.Uint(d.sizes.Length) }

// CString reads a NUL-terminated string and consumes the terminator.
func (d *Decoder) CString() string {
	if d.err != nil {
		return ""
	}
	for i := d.off; i < len(d.buf); i++ {
		if d.buf[i] == 0 {
			s := string(d.buf[d.off:i])
			d.off = i + 1
			return s
		}
	}
	d.err = fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, d.off)
	return ""
}

// Uint decodes a little-endian unsigned integer of len(b) bytes.
func Uint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
