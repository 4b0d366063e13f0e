package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Space allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// Fill value write times.
const (
	FillOnAlloc uint8 = 0
	FillNever   uint8 = 1
	FillIfSet   uint8 = 2
)

// FillValue records when storage is allocated and what unwritten elements
// read as.
type FillValue struct {
	AllocTime uint8
	WriteTime uint8
	Defined   bool
	Value     []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

// NewFillValue returns the default fill settings for a dataset stored with
// the given layout class.
func NewFillValue(class LayoutClass) *FillValue {
	m := &FillValue{AllocTime: AllocLate, WriteTime: FillIfSet}
	switch class {
	case LayoutCompact:
		m.AllocTime = AllocEarly
	case LayoutChunked:
		m.AllocTime = AllocIncremental
	}
	return m
}

func decodeFillValue(d *binary.Decoder) *FillValue {
	m := &FillValue{}
	switch v := d.U8(); v {
	case 1, 2:
		m.AllocTime = d.U8()
		m.WriteTime = d.U8()
		m.Defined = d.U8() != 0
		if v == 2 && !m.Defined {
			return m
		}
		m.Value = d.Bytes(int(d.U32()))
	case 3:
		flags := d.U8()
		m.AllocTime = flags & 0x03
		m.WriteTime = flags >> 2 & 0x03
		m.Defined = flags&0x20 != 0
		if m.Defined {
			m.Value = d.Bytes(int(d.U32()))
		}
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: fill value version %d", ErrUnsupported, v))
		}
	}
	if len(m.Value) == 0 {
		m.Value = nil
	}
	return m
}

// Encode writes a version 3 fill value message.
func (m *FillValue) Encode(e *binary.Encoder) {
	flags := m.AllocTime&0x03 | (m.WriteTime&0x03)<<2
	if m.Defined {
		flags |= 0x20
	}
	e.U8(3)
	e.U8(flags)
	if m.Defined {
		e.U32(uint32(len(m.Value)))
		e.Raw(m.Value)
	}
}
