package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Filter identifiers registered with the HDF Group.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterZstd        uint16 = 32015
)

// FilterOptional marks a filter whose failure may be ignored.
const FilterOptional uint16 = 0x0001

// Filter is one stage of a filter pipeline.
type Filter struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// IsOptional reports whether the filter may be skipped on failure.
func (f Filter) IsOptional() bool { return f.Flags&FilterOptional != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []Filter
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func decodeFilterPipeline(d *binary.Decoder) *FilterPipeline {
	m := &FilterPipeline{Version: d.U8()}
	n := int(d.U8())
	switch m.Version {
	case 1:
		d.Skip(6)
	case 2:
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: filter pipeline version %d", ErrUnsupported, m.Version))
		}
		return m
	}

	for i := 0; i < n && d.Err() == nil; i++ {
		var f Filter
		f.ID = d.U16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.U16())
		}
		f.Flags = d.U16()
		nvals := int(d.U16())
		if nameLen > 0 {
			start := d.Pos()
			f.Name = d.CString()
			if m.Version == 1 {
				d.Seek(start + binary.AlignUp(nameLen, 8))
			}
		}
		for j := 0; j < nvals; j++ {
			f.ClientData = append(f.ClientData, d.U32())
		}
		if m.Version == 1 && nvals%2 == 1 {
			d.Skip(4)
		}
		m.Filters = append(m.Filters, f)
	}
	return m
}

// Encode writes a version 2 pipeline.
func (m *FilterPipeline) Encode(e *binary.Encoder) {
	e.U8(2)
	e.U8(uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.U16(f.ID)
		if f.ID >= 256 {
			e.U16(uint16(len(f.Name) + 1))
		}
		e.U16(f.Flags)
		e.U16(uint16(len(f.ClientData)))
		if f.ID >= 256 {
			e.String(f.Name)
		}
		for _, v := range f.ClientData {
			e.U32(v)
		}
	}
}
