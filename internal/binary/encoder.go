package binary

import "encoding/binary"

// Encoder appends little-endian fields to a buffer.
type Encoder struct {
	buf   []byte
	sizes Sizes
}

// NewEncoder returns an empty Encoder.
func NewEncoder(s Sizes) *Encoder {
	return &Encoder{sizes: s}
}

// Sizes returns the address and length widths.
func (e *Encoder) Sizes() Sizes { return e.sizes }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// U8 appends one byte.
func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

// U16 appends a 16-bit value.
func (e *Encoder) U16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }

// U32 appends a 32-bit value.
func (e *Encoder) U32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

// U64 appends a 64-bit value.
func (e *Encoder) U64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

// Uint appends the low n bytes of v.
func (e *Encoder) Uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

// Addr appends an address at the file's offset width.
func (e *Encoder) Addr(v uint64) { e.Uint(v, e.sizes.Offset) }

// Length appends a length at the file's length width.
func (e *Encoder) Length(v uint64) { e.Uint(v, e.sizes.Length) }

// Raw appends b unchanged.
func (e *Encoder) Raw(b []byte) { e.buf = append(e.buf, b...) }

// String appends s and a NUL terminator.
func (e *Encoder) String(s string) {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Zeros appends n zero bytes.
func (e *Encoder) Zeros(n int) {
	for ; n > 0; n-- {
		e.buf = append(e.buf, 0)
	}
}

// Align pads with zeros up to a multiple of n.
func (e *Encoder) Align(n int) {
	e.Zeros(AlignUp(len(e.buf), n) - len(e.buf))
}

// Checksum appends the lookup3 checksum of everything written so far.
func (e *Encoder) Checksum() { e.U32(Lookup3(e.buf)) }

// PutU32 overwrites four bytes at off.
func (e *Encoder) PutU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(e.buf[off:], v)
}

// AlignUp rounds n up to a multiple of align.
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// UintWidth returns the fewest bytes that hold v, at least one.
func UintWidth(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}
