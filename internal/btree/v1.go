// Package btree walks the B-trees that index old-style group members and
// chunked dataset storage.
package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/heap"
)

// Node types of version 1 B-trees.
const (
	nodeGroup = 0
	nodeChunk = 1
)

// maxDepth bounds tree height so corrupt sibling or child pointers cannot
// recurse forever.
const maxDepth = 64

// Chunk locates one stored chunk of a dataset.
type Chunk struct {
	// Offset is the element offset of the chunk's first element in each
	// dataset dimension.
	Offset     []uint64
	Address    uint64
	Size       uint64
	FilterMask uint32
}

type nodeV1 struct {
	level    int
	keys     [][]byte
	children []uint64
}

func readNodeV1(src *binary.Source, addr uint64, typ uint8, keySize int) (*nodeV1, error) {
	s := src.Sizes()
	d, err := src.Decoder(addr, 8+2*s.Offset)
	if err != nil {
		return nil, err
	}
	d.Signature("TREE")
	if t := d.U8(); t != typ && d.Err() == nil {
		return nil, fmt.Errorf("%w: B-tree node type %d, want %d", binary.ErrUnsupported, t, typ)
	}
	n := &nodeV1{level: int(d.U8())}
	used := int(d.U16())
	if err := d.Err(); err != nil {
		return nil, err
	}

	if d, err = src.Decoder(addr+uint64(8+2*s.Offset), used*(keySize+s.Offset)+keySize); err != nil {
		return nil, err
	}
	for i := 0; i < used; i++ {
		n.keys = append(n.keys, d.Bytes(keySize))
		n.children = append(n.children, d.Addr())
	}
	n.keys = append(n.keys, d.Bytes(keySize))
	return n, d.Err()
}

// walkV1 calls leaf for each child of the level 0 nodes below addr with the
// key to its left.
func walkV1(src *binary.Source, addr uint64, typ uint8, keySize, want, depth int, leaf func(key []byte, child uint64) error) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: B-tree deeper than %d", binary.ErrUnsupported, maxDepth)
	}
	n, err := readNodeV1(src, addr, typ, keySize)
	if err != nil {
		return fmt.Errorf("B-tree node at 0x%x: %w", addr, err)
	}
	if want >= 0 && n.level != want {
		return fmt.Errorf("B-tree node at 0x%x: level %d, want %d", addr, n.level, want)
	}
	for i, child := range n.children {
		if n.level == 0 {
			err = leaf(n.keys[i], child)
		} else {
			err = walkV1(src, child, typ, keySize, n.level-1, depth+1, leaf)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadChunksV1 returns the chunks indexed by the version 1 B-tree at addr
// for a dataset of the given rank.
func ReadChunksV1(src *binary.Source, addr uint64, rank int) ([]Chunk, error) {
	keySize := 4 + 4 + 8*(rank+1)
	var chunks []Chunk
	err := walkV1(src, addr, nodeChunk, keySize, -1, 0, func(key []byte, child uint64) error {
		d := binary.NewDecoder(key, src.Sizes())
		c := Chunk{Size: uint64(d.U32()), FilterMask: d.U32(), Address: child}
		c.Offset = make([]uint64, rank)
		for i := range c.Offset {
			c.Offset[i] = d.U64()
		}
		chunks = append(chunks, c)
		return d.Err()
	})
	return chunks, err
}

// Symbol table entry cache types.
const (
	CacheNone     uint32 = 0
	CacheGroup    uint32 = 1
	CacheSoftLink uint32 = 2
)

// SymbolEntry is a member of an old-style group.
type SymbolEntry struct {
	Name      string
	Address   uint64
	CacheType uint32
	// Target is the path of a soft link.
	Target string
	// BTree and Heap are cached for member groups.
	BTree uint64
	Heap  uint64
}

// IsSoftLink reports whether the entry is a soft link.
func (e SymbolEntry) IsSoftLink() bool { return e.CacheType == CacheSoftLink }

// DecodeSymbolEntry reads one symbol table entry, resolving names against
// names when it is not nil.
func DecodeSymbolEntry(d *binary.Decoder, names *heap.Local) (SymbolEntry, error) {
	nameOff := d.Uint(d.Sizes().Offset)
	e := SymbolEntry{Address: d.Addr(), CacheType: d.U32()}
	d.Skip(4)
	scratch := binary.NewDecoder(d.Bytes(16), d.Sizes())
	if err := d.Err(); err != nil {
		return e, err
	}

	switch e.CacheType {
	case CacheGroup:
		e.BTree = scratch.Addr()
		e.Heap = scratch.Addr()
	case CacheSoftLink:
		e.Address = binary.Undefined
	}
	if names == nil {
		return e, nil
	}

	var err error
	if e.Name, err = names.String(nameOff); err != nil {
		return e, err
	}
	if e.CacheType == CacheSoftLink {
		e.Target, err = names.String(uint64(scratch.U32()))
	}
	return e, err
}

// ReadGroup returns the entries of the old-style group whose B-tree is at
// addr and whose names are in names, in B-tree (name) order.
func ReadGroup(src *binary.Source, addr uint64, names *heap.Local) ([]SymbolEntry, error) {
	s := src.Sizes()
	var entries []SymbolEntry
	err := walkV1(src, addr, nodeGroup, s.Length, -1, 0, func(_ []byte, snod uint64) error {
		got, err := readSymbolNode(src, snod, names)
		entries = append(entries, got...)
		return err
	})
	return entries, err
}

func readSymbolNode(src *binary.Source, addr uint64, names *heap.Local) ([]SymbolEntry, error) {
	s := src.Sizes()
	d, err := src.Decoder(addr, 8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w", addr, err)
	}
	d.Signature("SNOD")
	if v := d.U8(); v != 1 && d.Err() == nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w: version %d", addr, binary.ErrUnsupported, v)
	}
	d.Skip(1)
	n := int(d.U16())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w", addr, err)
	}

	entrySize := 2*s.Offset + 8 + 16
	if d, err = src.Decoder(addr+8, n*entrySize); err != nil {
		return nil, fmt.Errorf("symbol node at 0x%x: %w", addr, err)
	}
	entries := make([]SymbolEntry, 0, n)
	for i := 0; i < n; i++ {
		e, err := DecodeSymbolEntry(d, names)
		if err != nil {
			return nil, fmt.Errorf("symbol node at 0x%x entry %d: %w", addr, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
