// Package superblock locates and decodes the HDF5 superblock, and encodes
// the version 3 superblock written by this module.
package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Signature starts every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// ErrNotHDF5 is returned when no signature is found.
var ErrNotHDF5 = errors.New("not an HDF5 file")

// maxPrefix covers the largest superblock: version 1 with 8-byte offsets.
const maxPrefix = 24 + 4 + 4*8 + 2*8 + 8 + 16

// Superblock is the decoded file header.
type Superblock struct {
	Version uint8
	Sizes   binary.Sizes
	Flags   uint32

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootAddress      uint64

	// Versions 0 and 1 may cache the root group's symbol table in the
	// root entry scratch pad. Both are Undefined when absent.
	RootBTree uint64
	RootHeap  uint64

	// Offset is where the signature was found.
	Offset int64
}

// Read searches for the signature at 0 and at every power of two from 512
// onwards, as the library does for files with a user block.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature))
	for off := int64(0); ; off = nextOffset(off) {
		n, err := r.ReadAt(sig, off)
		if n < len(sig) {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, ErrNotHDF5
			}
			return nil, err
		}
		if bytes.Equal(sig, Signature) {
			return decodeAt(r, off)
		}
	}
}

func nextOffset(off int64) int64 {
	if off == 0 {
		return 512
	}
	return off * 2
}

func decodeAt(r io.ReaderAt, off int64) (*Superblock, error) {
	buf := make([]byte, maxPrefix)
	n, err := r.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]
	if len(buf) < 9 {
		return nil, fmt.Errorf("superblock: %w", binary.ErrTruncated)
	}

	sb := &Superblock{Version: buf[8], Offset: off, RootBTree: binary.Undefined, RootHeap: binary.Undefined}
	switch sb.Version {
	case 0, 1:
		err = sb.decodeV0(buf)
	case 2, 3:
		err = sb.decodeV2(buf)
	default:
		err = fmt.Errorf("%w: superblock version %d", binary.ErrUnsupported, sb.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	return sb, nil
}

func (sb *Superblock) decodeV0(buf []byte) error {
	if len(buf) < 16 {
		return binary.ErrTruncated
	}
	sb.Sizes = binary.Sizes{Offset: int(buf[13]), Length: int(buf[14])}
	if err := sb.Sizes.Validate(); err != nil {
		return err
	}

	d := binary.NewDecoder(buf, sb.Sizes)
	d.Seek(20)
	sb.Flags = d.U32()
	if sb.Version == 1 {
		d.Skip(4) // indexed storage K and reserved
	}
	sb.BaseAddress = d.Addr()
	d.Addr() // free-space info
	sb.EOFAddress = d.Addr()
	d.Addr() // driver info

	// root group symbol table entry
	d.Addr() // link name offset
	sb.RootAddress = d.Addr()
	cache := d.U32()
	d.Skip(4)
	scratch := d.Bytes(16)
	if err := d.Err(); err != nil {
		return err
	}
	if cache == 1 {
		sd := binary.NewDecoder(scratch, sb.Sizes)
		sb.RootBTree = sd.Addr()
		sb.RootHeap = sd.Addr()
	}
	return nil
}

func (sb *Superblock) decodeV2(buf []byte) error {
	if len(buf) < 12 {
		return binary.ErrTruncated
	}
	sb.Sizes = binary.Sizes{Offset: int(buf[9]), Length: int(buf[10])}
	if err := sb.Sizes.Validate(); err != nil {
		return err
	}
	size := EncodedSize(sb.Sizes)
	if len(buf) < size {
		return binary.ErrTruncated
	}
	if err := binary.VerifyLookup3(buf[:size]); err != nil {
		return err
	}

	d := binary.NewDecoder(buf[:size], sb.Sizes)
	d.Seek(11)
	sb.Flags = uint32(d.U8())
	sb.BaseAddress = d.Addr()
	sb.ExtensionAddress = d.Addr()
	sb.EOFAddress = d.Addr()
	sb.RootAddress = d.Addr()
	return d.Err()
}
