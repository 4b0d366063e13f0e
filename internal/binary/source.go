package binary

import (
	"errors"
	"fmt"
	"io"
)

// Source reads file structures at absolute addresses.
type Source struct {
	r     io.ReaderAt
	sizes Sizes
	base  uint64
}

// NewSource wraps r. Addresses are relative to base, the superblock's
// base address.
func NewSource(r io.ReaderAt, s Sizes, base uint64) *Source {
	return &Source{r: r, sizes: s, base: base}
}

// Sizes returns the address and length widths of the file.
func (s *Source) Sizes() Sizes { return s.sizes }

// ReadAt reads exactly n bytes at addr.
func (s *Source) ReadAt(addr uint64, n int) ([]byte, error) {
	if s.sizes.IsUndefined(addr) {
		return nil, fmt.Errorf("%w: read at undefined address", ErrTruncated)
	}
	b := make([]byte, n)
	got, err := s.r.ReadAt(b, int64(s.base+addr))
	if got == n {
		return b, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %d bytes at 0x%x, file has %d", ErrTruncated, n, addr, got)
	}
	return nil, err
}

// Decoder reads n bytes at addr and returns a Decoder over them.
func (s *Source) Decoder(addr uint64, n int) (*Decoder, error) {
	b, err := s.ReadAt(addr, n)
	if err != nil {
		return nil, err
	}
	return NewDecoder(b, s.sizes), nil
}
