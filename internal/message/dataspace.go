package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Unlimited marks an extendible dimension in MaxDims.
const Unlimited = binary.Undefined

// SpaceKind distinguishes scalar, simple and null dataspaces.
type SpaceKind uint8

const (
	SpaceScalar SpaceKind = 0
	SpaceSimple SpaceKind = 1
	SpaceNull   SpaceKind = 2
)

// Dataspace describes the shape of a dataset or attribute.
type Dataspace struct {
	Version uint8
	Kind    SpaceKind
	Dims    []uint64
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NewDataspace returns a simple dataspace with fixed maximum dimensions.
func NewDataspace(dims []uint64) *Dataspace {
	return &Dataspace{
		Version: 2,
		Kind:    SpaceSimple,
		Dims:    append([]uint64(nil), dims...),
		MaxDims: append([]uint64(nil), dims...),
	}
}

// NewScalarDataspace returns a dataspace holding exactly one element.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, Kind: SpaceScalar}
}

// Rank returns the number of dimensions.
func (m *Dataspace) Rank() int { return len(m.Dims) }

// IsScalar reports whether the dataspace holds a single rank-0 element.
func (m *Dataspace) IsScalar() bool { return m.Kind == SpaceScalar }

// NumElements returns the element count. Null dataspaces hold none.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

func decodeDataspace(d *binary.Decoder) *Dataspace {
	m := &Dataspace{Version: d.U8()}
	rank := int(d.U8())
	flags := d.U8()

	switch m.Version {
	case 1:
		d.Skip(5)
		m.Kind = SpaceSimple
		if rank == 0 {
			m.Kind = SpaceScalar
		}
	case 2:
		m.Kind = SpaceKind(d.U8())
		if m.Kind > SpaceNull {
			d.Fail(fmt.Errorf("%w: dataspace kind %d", ErrUnsupported, m.Kind))
		}
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: dataspace version %d", ErrUnsupported, m.Version))
		}
		return m
	}

	if rank > 0 {
		m.Dims = make([]uint64, rank)
		for i := range m.Dims {
			m.Dims[i] = d.Length()
		}
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = d.Length()
			if l := d.Sizes().Length; l < 8 && m.MaxDims[i] == 1<<(8*l)-1 {
				m.MaxDims[i] = Unlimited
			}
		}
	}
	// Version 1 may carry a permutation index, which HDF5 never used.
	return m
}

// Encode writes a version 2 dataspace.
func (m *Dataspace) Encode(e *binary.Encoder) {
	var flags uint8
	if len(m.MaxDims) == len(m.Dims) && len(m.Dims) > 0 {
		flags |= 0x01
	}
	e.U8(2)
	e.U8(uint8(len(m.Dims)))
	e.U8(flags)
	e.U8(uint8(m.Kind))
	for _, d := range m.Dims {
		e.Length(d)
	}
	if flags&0x01 != 0 {
		for _, d := range m.MaxDims {
			e.Length(d)
		}
	}
}
