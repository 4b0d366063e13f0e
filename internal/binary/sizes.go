package binary

import "fmt"

// Undefined is the all-ones address that marks a missing object.
const Undefined = ^uint64(0)

// Sizes holds the widths of addresses and lengths in a file.
type Sizes struct {
	Offset int
	Length int
}

// DefaultSizes is what the writer uses and what the superblock search
// assumes before the real sizes are known.
var DefaultSizes = Sizes{Offset: 8, Length: 8}

// Validate reports whether both widths are supported.
func (s Sizes) Validate() error {
	for _, n := range []int{s.Offset, s.Length} {
		if n != 2 && n != 4 && n != 8 {
			return fmt.Errorf("%w: %d", ErrInvalidSize, n)
		}
	}
	return nil
}

// IsUndefined reports whether addr is the undefined address at the
// offset width, which is also how narrow files spell Undefined.
func (s Sizes) IsUndefined(addr uint64) bool {
	if addr == Undefined {
		return true
	}
	return s.Offset < 8 && addr == (uint64(1)<<(8*s.Offset))-1
}

// VarLenRefSize is the stored size of one variable-length element: a
// sequence length, a global heap collection address and an object index.
func (s Sizes) VarLenRefSize() int {
	return 4 + s.Offset + 4
}
