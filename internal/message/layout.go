package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndex identifies how chunk addresses are found. Layout versions
// before 4 always use a version 1 B-tree.
type ChunkIndex uint8

const (
	IndexBTreeV1    ChunkIndex = 0
	IndexSingle     ChunkIndex = 1
	IndexImplicit   ChunkIndex = 2
	IndexFixedArray ChunkIndex = 3
	IndexExtArray   ChunkIndex = 4
	IndexBTreeV2    ChunkIndex = 5
)

func (c ChunkIndex) String() string {
	switch c {
	case IndexBTreeV1:
		return "btree-v1"
	case IndexSingle:
		return "single"
	case IndexImplicit:
		return "implicit"
	case IndexFixedArray:
		return "fixed-array"
	case IndexExtArray:
		return "extensible-array"
	case IndexBTreeV2:
		return "btree-v2"
	}
	return fmt.Sprintf("index %d", uint8(c))
}

// Layout flag bits of version 4 chunked layouts.
const (
	LayoutNoEdgeFilter   uint8 = 0x01
	LayoutSingleFiltered uint8 = 0x02
)

// ExtArrayParams are the creation parameters of an extensible array index.
type ExtArrayParams struct {
	MaxBits       uint8
	IndexElements uint8
	MinPointers   uint8
	MinElements   uint8
	PageBits      uint8
}

// DataLayout locates the raw data of a dataset.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Address is the start of contiguous data or of the chunk index.
	Address uint64
	// Size is the byte length of contiguous data.
	Size uint64
	// Data holds compact data.
	Data []byte

	ChunkDims   []uint32
	ElementSize uint32
	Index       ChunkIndex
	Flags       uint8

	// Index creation parameters.
	PageBits     uint8
	ExtArray     ExtArrayParams
	BTreeNode    uint32
	BTreeSplit   uint8
	BTreeMerge   uint8
	FilteredSize uint64
	FilterMask   uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// NewContiguousLayout returns a layout for size bytes at addr.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, Data: data, Size: uint64(len(data))}
}

// NewChunkedLayout returns a version 4 chunked layout using index.
func NewChunkedLayout(chunk []uint32, elemSize uint32, index ChunkIndex) *DataLayout {
	m := &DataLayout{
		Version:     4,
		Class:       LayoutChunked,
		Address:     binary.Undefined,
		ChunkDims:   append([]uint32(nil), chunk...),
		ElementSize: elemSize,
		Index:       index,
	}
	switch index {
	case IndexFixedArray:
		m.PageBits = 10
	case IndexExtArray:
		m.ExtArray = ExtArrayParams{MaxBits: 32, IndexElements: 4, MinPointers: 4, MinElements: 16, PageBits: 10}
		m.PageBits = m.ExtArray.PageBits
	case IndexBTreeV2:
		m.BTreeNode, m.BTreeSplit, m.BTreeMerge = 2048, 100, 40
	}
	return m
}

// ChunkBytes returns the unfiltered size of one chunk.
func (m *DataLayout) ChunkBytes() uint64 {
	n := uint64(m.ElementSize)
	for _, d := range m.ChunkDims {
		n *= uint64(d)
	}
	return n
}

func decodeLayout(d *binary.Decoder) *DataLayout {
	m := &DataLayout{Version: d.U8()}
	switch m.Version {
	case 1, 2:
		decodeLayoutV1(d, m)
	case 3:
		decodeLayoutV3(d, m)
	case 4:
		decodeLayoutV3(d, m)
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: layout version %d", ErrUnsupported, m.Version))
		}
	}
	return m
}

func decodeLayoutV1(d *binary.Decoder, m *DataLayout) {
	ndims := int(d.U8())
	m.Class = LayoutClass(d.U8())
	d.Skip(5)
	m.Address = binary.Undefined
	if m.Class != LayoutCompact {
		m.Address = d.Addr()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = d.U32()
	}

	switch m.Class {
	case LayoutCompact:
		m.Size = uint64(d.U32())
		m.Data = d.Bytes(int(m.Size))
	case LayoutContiguous:
		m.Size = 1
		for _, v := range dims {
			m.Size *= uint64(v)
		}
	case LayoutChunked:
		m.setChunkDims(d, dims)
	}
}

func decodeLayoutV3(d *binary.Decoder, m *DataLayout) {
	m.Class = LayoutClass(d.U8())
	switch m.Class {
	case LayoutCompact:
		m.Size = uint64(d.U16())
		m.Data = d.Bytes(int(m.Size))
	case LayoutContiguous:
		m.Address = d.Addr()
		m.Size = d.Length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(d.U8())
			m.Address = d.Addr()
			dims := make([]uint32, ndims)
			for i := range dims {
				dims[i] = d.U32()
			}
			m.setChunkDims(d, dims)
			return
		}
		decodeChunkedV4(d, m)
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: layout class %d", ErrUnsupported, m.Class))
		}
	}
}

func decodeChunkedV4(d *binary.Decoder, m *DataLayout) {
	m.Flags = d.U8()
	ndims := int(d.U8())
	width := int(d.U8())
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = uint32(d.Uint(width))
	}
	m.setChunkDims(d, dims)

	m.Index = ChunkIndex(d.U8())
	switch m.Index {
	case IndexSingle:
		if m.Flags&LayoutSingleFiltered != 0 {
			m.FilteredSize = d.Length()
			m.FilterMask = d.U32()
		}
	case IndexImplicit:
	case IndexFixedArray:
		m.PageBits = d.U8()
	case IndexExtArray:
		m.ExtArray = ExtArrayParams{
			MaxBits:       d.U8(),
			IndexElements: d.U8(),
			MinPointers:   d.U8(),
			MinElements:   d.U8(),
			PageBits:      d.U8(),
		}
		m.PageBits = m.ExtArray.PageBits
	case IndexBTreeV2:
		m.BTreeNode = d.U32()
		m.BTreeSplit = d.U8()
		m.BTreeMerge = d.U8()
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: chunk index type %d", ErrUnsupported, m.Index))
		}
	}
	m.Address = d.Addr()
}

// setChunkDims splits the stored dimensions into the chunk shape and the
// trailing element size.
func (m *DataLayout) setChunkDims(d *binary.Decoder, dims []uint32) {
	if len(dims) < 2 {
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: chunked layout with %d dimensions", ErrUnsupported, len(dims)))
		}
		return
	}
	m.ChunkDims = dims[:len(dims)-1]
	m.ElementSize = dims[len(dims)-1]
}

// Encode writes compact and contiguous layouts as version 3 and chunked
// layouts as version 4.
func (m *DataLayout) Encode(e *binary.Encoder) {
	if m.Class != LayoutChunked {
		e.U8(3)
		e.U8(uint8(m.Class))
		if m.Class == LayoutCompact {
			e.U16(uint16(len(m.Data)))
			e.Raw(m.Data)
			return
		}
		e.Addr(m.Address)
		e.Length(m.Size)
		return
	}

	dims := append(append([]uint32(nil), m.ChunkDims...), m.ElementSize)
	width := 1
	for _, v := range dims {
		if w := binary.UintWidth(uint64(v)); w > width {
			width = w
		}
	}

	e.U8(4)
	e.U8(uint8(LayoutChunked))
	e.U8(m.Flags)
	e.U8(uint8(len(dims)))
	e.U8(uint8(width))
	for _, v := range dims {
		e.Uint(uint64(v), width)
	}
	e.U8(uint8(m.Index))
	switch m.Index {
	case IndexSingle:
		if m.Flags&LayoutSingleFiltered != 0 {
			e.Length(m.FilteredSize)
			e.U32(m.FilterMask)
		}
	case IndexFixedArray:
		e.U8(m.PageBits)
	case IndexExtArray:
		e.U8(m.ExtArray.MaxBits)
		e.U8(m.ExtArray.IndexElements)
		e.U8(m.ExtArray.MinPointers)
		e.U8(m.ExtArray.MinElements)
		e.U8(m.ExtArray.PageBits)
	case IndexBTreeV2:
		e.U32(m.BTreeNode)
		e.U8(m.BTreeSplit)
		e.U8(m.BTreeMerge)
	}
	e.Addr(m.Address)
}
