package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Attribute is a small named value attached to an object header. Data holds
// the raw elements; variable-length elements are global heap references.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// NewAttribute returns a version 3 attribute with UTF-8 name encoding.
func NewAttribute(name string, dt *Datatype, ds *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: dt, Dataspace: ds, Data: data}
}

func decodeAttribute(d *binary.Decoder) *Attribute {
	m := &Attribute{Version: d.U8()}
	if m.Version < 1 || m.Version > 3 {
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: attribute version %d", ErrUnsupported, m.Version))
		}
		return m
	}
	flags := d.U8()
	if flags&0x03 != 0 {
		d.Fail(fmt.Errorf("%w: shared attribute datatype or dataspace", ErrUnsupported))
		return m
	}
	nameLen := int(d.U16())
	typeLen := int(d.U16())
	spaceLen := int(d.U16())
	if m.Version == 3 {
		d.Skip(1)
	}

	// Version 1 pads each part to eight bytes.
	pad := func(n int) int {
		if m.Version == 1 {
			return binary.AlignUp(n, 8)
		}
		return n
	}

	name := d.Bytes(pad(nameLen))
	if nameLen > 0 && len(name) >= nameLen {
		name = name[:nameLen-1]
	}
	m.Name = string(name)

	sub := func(n int) *binary.Decoder {
		return binary.NewDecoder(d.Bytes(pad(n)), d.Sizes())
	}
	td := sub(typeLen)
	m.Datatype = decodeDatatype(td)
	sd := sub(spaceLen)
	m.Dataspace = decodeDataspace(sd)
	for _, err := range []error{td.Err(), sd.Err()} {
		if err != nil {
			d.Fail(err)
		}
	}
	if d.Err() != nil {
		return m
	}

	m.Data = d.Bytes(int(m.Dataspace.NumElements()) * int(m.Datatype.Size))
	return m
}

// Encode writes a version 3 attribute.
func (m *Attribute) Encode(e *binary.Encoder) {
	dt := binary.NewEncoder(e.Sizes())
	m.Datatype.Encode(dt)
	ds := binary.NewEncoder(e.Sizes())
	m.Dataspace.Encode(ds)

	e.U8(3)
	e.U8(0)
	e.U16(uint16(len(m.Name) + 1))
	e.U16(uint16(dt.Len()))
	e.U16(uint16(ds.Len()))
	e.U8(uint8(CharsetUTF8))
	e.String(m.Name)
	e.Raw(dt.Bytes())
	e.Raw(ds.Bytes())
	e.Raw(m.Data)
}
