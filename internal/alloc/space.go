package alloc

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrUnallocated is returned for writes outside allocated space.
var ErrUnallocated = errors.New("alloc: write outside allocated space")

// Block is an allocated range of the file.
type Block struct {
	Addr uint64
	Size uint64
}

// End returns the first address after the block.
func (b Block) End() uint64 { return b.Addr + b.Size }

// Stats summarizes the allocations of a Space.
type Stats struct {
	Allocations  uint64
	BytesAlloc   uint64
	BytesWritten uint64
	LargestAlloc uint64
}

// Space allocates file space at EOF and writes into it. It is safe for
// concurrent use.
type Space struct {
	mu     sync.Mutex
	w      io.WriterAt
	base   uint64
	eof    uint64
	blocks []Block
	stats  Stats
}

// New returns a Space writing to w whose first allocation starts at base.
// Bytes below base belong to the caller and are written with WriteHeader.
func New(w io.WriterAt, base uint64) *Space {
	return &Space{w: w, base: base, eof: base}
}

// Alloc reserves size bytes at EOF. A zero size returns the current EOF and
// reserves nothing.
func (s *Space) Alloc(size uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(size)
}

// AllocAligned reserves size bytes at the next multiple of align.
func (s *Space) AllocAligned(size, align uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if align > 1 {
		if r := s.eof % align; r != 0 {
			s.eof += align - r
		}
	}
	return s.alloc(size)
}

func (s *Space) alloc(size uint64) uint64 {
	addr := s.eof
	if size == 0 {
		return addr
	}
	s.eof += size
	s.blocks = append(s.blocks, Block{Addr: addr, Size: size})
	s.stats.Allocations++
	s.stats.BytesAlloc += size
	s.stats.LargestAlloc = max(s.stats.LargestAlloc, size)
	return addr
}

// WriteAt writes b at addr, which must lie inside one allocated block.
func (s *Space) WriteAt(addr uint64, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	s.mu.Lock()
	blk, ok := s.find(addr)
	s.mu.Unlock()
	if !ok || addr+uint64(len(b)) > blk.End() {
		return fmt.Errorf("%w: %d bytes at 0x%x", ErrUnallocated, len(b), addr)
	}
	return s.write(addr, b)
}

// Append allocates space for b and writes it.
func (s *Space) Append(b []byte) (uint64, error) {
	addr := s.Alloc(uint64(len(b)))
	return addr, s.write(addr, b)
}

// WriteHeader writes b below the base address, where the superblock lives.
func (s *Space) WriteHeader(addr uint64, b []byte) error {
	if addr+uint64(len(b)) > s.base {
		return fmt.Errorf("%w: header of %d bytes at 0x%x past base 0x%x", ErrUnallocated, len(b), addr, s.base)
	}
	return s.write(addr, b)
}

func (s *Space) write(addr uint64, b []byte) error {
	if _, err := s.w.WriteAt(b, int64(addr)); err != nil {
		return err
	}
	s.mu.Lock()
	s.stats.BytesWritten += uint64(len(b))
	s.mu.Unlock()
	return nil
}

// find returns the block holding addr. Blocks are sorted by address since
// allocation only moves forward.
func (s *Space) find(addr uint64) (Block, bool) {
	i := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].End() > addr })
	if i == len(s.blocks) || s.blocks[i].Addr > addr {
		return Block{}, false
	}
	return s.blocks[i], true
}

// EOF returns the address after the last allocation.
func (s *Space) EOF() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eof
}

// Stats returns a copy of the allocation statistics.
func (s *Space) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Blocks returns a copy of the allocated blocks in address order.
func (s *Space) Blocks() []Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Block(nil), s.blocks...)
}
