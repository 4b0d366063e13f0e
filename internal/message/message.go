// Package message decodes and encodes HDF5 object header messages.
//
// Decoders accept every version the format defines for the messages a
// reader needs to walk groups and load datasets. Encoders produce the
// newest version that keeps the written file readable by HDF5 1.10 and
// later.
package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// ErrUnsupported is returned for message versions or variants that are not
// implemented.
var ErrUnsupported = binary.ErrUnsupported

// Type is the header message type number.
type Type uint16

const (
	TypeNIL                Type = 0x00
	TypeDataspace          Type = 0x01
	TypeLinkInfo           Type = 0x02
	TypeDatatype           Type = 0x03
	TypeFillValueOld       Type = 0x04
	TypeFillValue          Type = 0x05
	TypeLink               Type = 0x06
	TypeExternalFiles      Type = 0x07
	TypeDataLayout         Type = 0x08
	TypeBogus              Type = 0x09
	TypeGroupInfo          Type = 0x0A
	TypeFilterPipeline     Type = 0x0B
	TypeAttribute          Type = 0x0C
	TypeComment            Type = 0x0D
	TypeModTimeOld         Type = 0x0E
	TypeSharedMessageTable Type = 0x0F
	TypeContinuation       Type = 0x10
	TypeSymbolTable        Type = 0x11
	TypeModTime            Type = 0x12
	TypeBTreeKValues       Type = 0x13
	TypeDriverInfo         Type = 0x14
	TypeAttributeInfo      Type = 0x15
	TypeRefCount           Type = 0x16
	TypeFileSpaceInfo      Type = 0x17
)

var typeNames = map[Type]string{
	TypeNIL:            "nil",
	TypeDataspace:      "dataspace",
	TypeLinkInfo:       "link info",
	TypeDatatype:       "datatype",
	TypeFillValueOld:   "fill value (old)",
	TypeFillValue:      "fill value",
	TypeLink:           "link",
	TypeExternalFiles:  "external files",
	TypeDataLayout:     "data layout",
	TypeGroupInfo:      "group info",
	TypeFilterPipeline: "filter pipeline",
	TypeAttribute:      "attribute",
	TypeComment:        "comment",
	TypeContinuation:   "continuation",
	TypeSymbolTable:    "symbol table",
	TypeModTime:        "modification time",
	TypeAttributeInfo:  "attribute info",
	TypeRefCount:       "reference count",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("message 0x%04x", uint16(t))
}

// Header message flag bits.
const (
	FlagConstant    uint8 = 0x01
	FlagShared      uint8 = 0x02
	FlagNotShared   uint8 = 0x04
	FlagFailUnknown uint8 = 0x08
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Encodable is a message that can be written back to an object header.
type Encodable interface {
	Message
	Encode(e *binary.Encoder)
}

// Unknown keeps the payload of a message that is not decoded, including
// shared messages whose body is a reference elsewhere.
type Unknown struct {
	MsgType Type
	Flags   uint8
	Data    []byte
}

func (m *Unknown) Type() Type { return m.MsgType }

// Continuation points at the next chunk of an object header.
type Continuation struct {
	Address uint64
	Length  uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func (m *Continuation) Encode(e *binary.Encoder) {
	e.Addr(m.Address)
	e.Length(m.Length)
}

// SymbolTable marks an old-style group and locates its index and heap.
type SymbolTable struct {
	BTree uint64
	Heap  uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func (m *SymbolTable) Encode(e *binary.Encoder) {
	e.Addr(m.BTree)
	e.Addr(m.Heap)
}

// AttributeInfo is present when an object tracks attribute creation order
// or stores attributes densely.
type AttributeInfo struct {
	Flags            uint8
	MaxCreationIndex uint16
	Heap             uint64
	NameIndex        uint64
	OrderIndex       uint64
}

func (m *AttributeInfo) Type() Type { return TypeAttributeInfo }

// Dense reports whether attributes live in a fractal heap rather than in
// attribute messages.
func (m *AttributeInfo) Dense() bool { return m.Heap != binary.Undefined }

// Parse decodes the body of a message of type typ. Messages flagged as
// shared and types without a decoder come back as *Unknown.
func Parse(typ Type, flags uint8, data []byte, s binary.Sizes) (Message, error) {
	if flags&FlagShared != 0 {
		return &Unknown{MsgType: typ, Flags: flags, Data: data}, nil
	}

	d := binary.NewDecoder(data, s)
	var m Message
	switch typ {
	case TypeDataspace:
		m = decodeDataspace(d)
	case TypeDatatype:
		m = decodeDatatype(d)
	case TypeDataLayout:
		m = decodeLayout(d)
	case TypeFilterPipeline:
		m = decodeFilterPipeline(d)
	case TypeAttribute:
		m = decodeAttribute(d)
	case TypeLink:
		m = decodeLink(d)
	case TypeLinkInfo:
		m = decodeLinkInfo(d)
	case TypeGroupInfo:
		m = decodeGroupInfo(d)
	case TypeAttributeInfo:
		m = decodeAttributeInfo(d)
	case TypeFillValue:
		m = decodeFillValue(d)
	case TypeContinuation:
		m = &Continuation{Address: d.Addr(), Length: d.Length()}
	case TypeSymbolTable:
		m = &SymbolTable{BTree: d.Addr(), Heap: d.Addr()}
	default:
		return &Unknown{MsgType: typ, Flags: flags, Data: data}, nil
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}
	return m, nil
}

func decodeAttributeInfo(d *binary.Decoder) *AttributeInfo {
	if v := d.U8(); v != 0 && d.Err() == nil {
		d.Fail(fmt.Errorf("%w: attribute info version %d", ErrUnsupported, v))
		return nil
	}
	m := &AttributeInfo{Flags: d.U8(), OrderIndex: binary.Undefined}
	if m.Flags&0x01 != 0 {
		m.MaxCreationIndex = d.U16()
	}
	m.Heap = d.Addr()
	m.NameIndex = d.Addr()
	if m.Flags&0x02 != 0 {
		m.OrderIndex = d.Addr()
	}
	return m
}

// Encode returns the encoded body of m.
func Encode(m Encodable, s binary.Sizes) []byte {
	e := binary.NewEncoder(s)
	m.Encode(e)
	return e.Bytes()
}
