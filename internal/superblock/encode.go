package superblock

import "github.com/robert-malhotra/go-lh5/internal/binary"

// New returns a version 3 superblock with the given sizes. The addresses
// are filled in when the file is finished.
func New(s binary.Sizes) *Superblock {
	return &Superblock{
		Version:          3,
		Sizes:            s,
		ExtensionAddress: binary.Undefined,
		RootBTree:        binary.Undefined,
		RootHeap:         binary.Undefined,
	}
}

// EncodedSize is the size of a version 2 or 3 superblock.
func EncodedSize(s binary.Sizes) int {
	return 12 + 4*s.Offset + 4
}

// Encode returns the version 3 encoding, checksum included.
func (sb *Superblock) Encode() []byte {
	e := binary.NewEncoder(sb.Sizes)
	e.Raw(Signature)
	e.U8(3)
	e.U8(uint8(sb.Sizes.Offset))
	e.U8(uint8(sb.Sizes.Length))
	e.U8(uint8(sb.Flags))
	e.Addr(sb.BaseAddress)
	e.Addr(sb.ExtensionAddress)
	e.Addr(sb.EOFAddress)
	e.Addr(sb.RootAddress)
	e.Checksum()
	return e.Bytes()
}
