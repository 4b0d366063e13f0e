package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Record types of version 2 B-trees indexing chunks.
const (
	RecordChunk         = 10
	RecordFilteredChunk = 11
)

// prefixV2 is the signature, version, type and checksum of every node.
const prefixV2 = 4 + 1 + 1 + 4

// ChunkSizeWidth returns the number of bytes used to store the filtered
// size of a chunk whose unfiltered size is n.
func ChunkSizeWidth(n uint64) int {
	w := 1 + (log2(n)+8)/8
	if w > 8 {
		w = 8
	}
	return w
}

func log2(n uint64) int {
	if n == 0 {
		return 0
	}
	return bits.Len64(n) - 1
}

type headerV2 struct {
	typ        uint8
	nodeSize   int
	recordSize int
	depth      int
	root       uint64
	rootCount  int
	total      uint64

	// Per level: maximum records in a node and cumulative maximum below it.
	maxRecords []int
	cumWidth   []int
	countWidth int
}

func readHeaderV2(src *binary.Source, addr uint64) (*headerV2, error) {
	s := src.Sizes()
	size := 4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + s.Offset + 2 + s.Length + 4
	b, err := src.ReadAt(addr, size)
	if err != nil {
		return nil, err
	}
	if err := binary.VerifyLookup3(b); err != nil {
		return nil, err
	}
	d := binary.NewDecoder(b, s)
	d.Signature("BTHD")
	if v := d.U8(); v != 0 && d.Err() == nil {
		return nil, fmt.Errorf("%w: B-tree v2 version %d", binary.ErrUnsupported, v)
	}
	h := &headerV2{typ: d.U8()}
	h.nodeSize = int(d.U32())
	h.recordSize = int(d.U16())
	h.depth = int(d.U16())
	d.Skip(2)
	h.root = d.Addr()
	h.rootCount = int(d.U16())
	h.total = d.Length()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if h.recordSize == 0 || h.nodeSize <= prefixV2 {
		return nil, fmt.Errorf("%w: B-tree v2 node size %d record size %d", binary.ErrUnsupported, h.nodeSize, h.recordSize)
	}
	if h.depth > maxDepth {
		return nil, fmt.Errorf("%w: B-tree v2 depth %d", binary.ErrUnsupported, h.depth)
	}

	leafMax := (h.nodeSize - prefixV2) / h.recordSize
	h.countWidth = binary.UintWidth(uint64(leafMax))
	h.maxRecords = []int{leafMax}
	cum := []uint64{uint64(leafMax)}
	h.cumWidth = []int{0}
	for lvl := 1; lvl <= h.depth; lvl++ {
		ptr := h.pointerSize(s, lvl)
		n := (h.nodeSize - (prefixV2 + ptr)) / (h.recordSize + ptr)
		h.maxRecords = append(h.maxRecords, n)
		c := uint64(n+1)*cum[lvl-1] + uint64(n)
		cum = append(cum, c)
		h.cumWidth = append(h.cumWidth, binary.UintWidth(c))
	}
	return h, nil
}

// pointerSize is the size of a child pointer in an internal node at level.
func (h *headerV2) pointerSize(s binary.Sizes, level int) int {
	n := s.Offset + h.countWidth
	if level > 1 {
		n += h.cumWidth[level-1]
	}
	return n
}

// walk calls rec for every record in key order.
func (h *headerV2) walk(src *binary.Source, addr uint64, count, level int, rec func([]byte) error) error {
	s := src.Sizes()
	sig := "BTLF"
	size := prefixV2 + count*h.recordSize
	if level > 0 {
		sig = "BTIN"
		size += (count + 1) * h.pointerSize(s, level)
	}
	b, err := src.ReadAt(addr, size)
	if err != nil {
		return fmt.Errorf("B-tree v2 node at 0x%x: %w", addr, err)
	}
	if err := binary.VerifyLookup3(b); err != nil {
		return fmt.Errorf("B-tree v2 node at 0x%x: %w", addr, err)
	}
	d := binary.NewDecoder(b, s)
	d.Signature(sig)
	d.Skip(1)
	if t := d.U8(); t != h.typ && d.Err() == nil {
		return fmt.Errorf("B-tree v2 node at 0x%x: record type %d, want %d", addr, t, h.typ)
	}
	records := make([][]byte, count)
	for i := range records {
		records[i] = d.Bytes(h.recordSize)
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("B-tree v2 node at 0x%x: %w", addr, err)
	}
	if level == 0 {
		for _, r := range records {
			if err := rec(r); err != nil {
				return err
			}
		}
		return nil
	}

	type child struct {
		addr  uint64
		count int
	}
	children := make([]child, count+1)
	for i := range children {
		children[i].addr = d.Addr()
		children[i].count = int(d.Uint(h.countWidth))
		if level > 1 {
			d.Skip(h.cumWidth[level-1])
		}
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("B-tree v2 node at 0x%x: %w", addr, err)
	}
	for i, c := range children {
		if err := h.walk(src, c.addr, c.count, level-1, rec); err != nil {
			return err
		}
		if i < count {
			if err := rec(records[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadChunksV2 returns the chunks indexed by the version 2 B-tree at addr.
// Records hold chunk offsets scaled by chunk; chunkBytes is the unfiltered
// chunk size.
func ReadChunksV2(src *binary.Source, addr uint64, chunk []uint32, chunkBytes uint64) ([]Chunk, error) {
	h, err := readHeaderV2(src, addr)
	if err != nil {
		return nil, fmt.Errorf("B-tree v2 header at 0x%x: %w", addr, err)
	}
	if h.typ != RecordChunk && h.typ != RecordFilteredChunk {
		return nil, fmt.Errorf("%w: B-tree v2 record type %d for chunks", binary.ErrUnsupported, h.typ)
	}
	if h.total == 0 || h.root == binary.Undefined {
		return nil, nil
	}

	width := ChunkSizeWidth(chunkBytes)
	var chunks []Chunk
	err = h.walk(src, h.root, h.rootCount, h.depth, func(r []byte) error {
		d := binary.NewDecoder(r, src.Sizes())
		c := Chunk{Address: d.Addr(), Size: chunkBytes}
		if h.typ == RecordFilteredChunk {
			c.Size = d.Uint(width)
			c.FilterMask = d.U32()
		}
		c.Offset = make([]uint64, len(chunk))
		for i := range c.Offset {
			c.Offset[i] = d.U64() * uint64(chunk[i])
		}
		chunks = append(chunks, c)
		return d.Err()
	})
	return chunks, err
}
