// Package heap reads local heaps and reads and writes global heap
// collections.
//
// Local heaps hold the link names of old-style groups. Global heap
// collections hold the elements of variable-length data, which datasets and
// attributes reference by collection address and object index.
package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Local is a local heap with its data segment loaded.
type Local struct {
	DataAddress uint64
	FreeList    uint64
	data        []byte
}

// ReadLocal reads the local heap at addr and its data segment.
func ReadLocal(src *binary.Source, addr uint64) (*Local, error) {
	s := src.Sizes()
	d, err := src.Decoder(addr, 8+2*s.Length+s.Offset)
	if err != nil {
		return nil, fmt.Errorf("local heap at 0x%x: %w", addr, err)
	}
	d.Signature("HEAP")
	if v := d.U8(); v != 0 && d.Err() == nil {
		return nil, fmt.Errorf("local heap at 0x%x: %w: version %d", addr, binary.ErrUnsupported, v)
	}
	d.Skip(3)
	size := d.Length()
	h := &Local{FreeList: d.Length(), DataAddress: d.Addr()}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("local heap at 0x%x: %w", addr, err)
	}
	if h.data, err = src.ReadAt(h.DataAddress, int(size)); err != nil {
		return nil, fmt.Errorf("local heap data at 0x%x: %w", h.DataAddress, err)
	}
	return h, nil
}

// String returns the NUL-terminated string at off in the data segment. A
// string running to the end of the segment is returned whole.
func (h *Local) String(off uint64) (string, error) {
	if off >= uint64(len(h.data)) {
		return "", fmt.Errorf("%w: local heap offset %d beyond %d bytes", binary.ErrTruncated, off, len(h.data))
	}
	b := h.data[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
