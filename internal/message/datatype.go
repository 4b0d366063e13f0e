package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// DatatypeClass is the datatype class number.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class %d", uint8(c))
}

type ByteOrder uint8

const (
	OrderLE  ByteOrder = 0
	OrderBE  ByteOrder = 1
	OrderVAX ByteOrder = 2
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Member is one field of a compound type.
type Member struct {
	Name   string
	Offset uint32
	Type   *Datatype
}

// Datatype describes the element type of a dataset or attribute.
//
// The class bit field and the property bytes are kept exactly as decoded so
// that a type copied from one file is written unchanged to another. Only
// Version, Class and Size are taken from the exported fields on Encode.
type Datatype struct {
	Version uint8
	Class   DatatypeClass
	Size    uint32

	ByteOrder      ByteOrder
	Signed         bool
	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool

	// Base is the parent type of enum, vlen and array types.
	Base    *Datatype
	Members []Member
	Dims    []uint32

	bits  uint32
	props []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// ClassBits returns the 24-bit class bit field.
func (m *Datatype) ClassBits() uint32 { return m.bits }

func (m *Datatype) IsVarLen() bool  { return m.Class == ClassVarLen }
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }
func (m *Datatype) IsFloat() bool   { return m.Class == ClassFloatPoint }

// IsString reports whether elements are fixed or variable length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

func (m *Datatype) String() string {
	switch {
	case m.IsVarLenString:
		return "vlen string"
	case m.Class == ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	case m.Class == ClassFixedPoint && m.Signed:
		return fmt.Sprintf("int%d", m.Size*8)
	case m.Class == ClassFixedPoint:
		return fmt.Sprintf("uint%d", m.Size*8)
	case m.Class == ClassFloatPoint:
		return fmt.Sprintf("float%d", m.Size*8)
	}
	return fmt.Sprintf("%s(%d)", m.Class, m.Size)
}

// NewFixedPointDatatype returns an integer type of size bytes.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order & 1)
	if signed {
		bits |= 0x08
	}
	e := binary.NewEncoder(binary.DefaultSizes)
	e.U16(0)
	e.U16(uint16(size * 8))
	return &Datatype{
		Version:   1,
		Class:     ClassFixedPoint,
		Size:      size,
		ByteOrder: order,
		Signed:    signed,
		bits:      bits,
		props:     e.Bytes(),
	}
}

// NewFloatDatatype returns an IEEE 754 type of 2, 4 or 8 bytes.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	var expLoc, expSize, mantSize uint8
	var bias uint32
	switch size {
	case 2:
		expLoc, expSize, mantSize, bias = 10, 5, 10, 15
	case 4:
		expLoc, expSize, mantSize, bias = 23, 8, 23, 127
	default:
		size = 8
		expLoc, expSize, mantSize, bias = 52, 11, 52, 1023
	}

	e := binary.NewEncoder(binary.DefaultSizes)
	e.U16(0)
	e.U16(uint16(size * 8))
	e.U8(expLoc)
	e.U8(expSize)
	e.U8(0)
	e.U8(mantSize)
	e.U32(bias)

	return &Datatype{
		Version:   1,
		Class:     ClassFloatPoint,
		Size:      size,
		ByteOrder: order,
		Signed:    true,
		// Mantissa normalization "implied" and the sign bit position.
		bits:  uint32(order&1) | 0x20 | (size*8-1)<<8,
		props: e.Bytes(),
	}
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, pad StringPadding, cset CharacterSet) *Datatype {
	return &Datatype{
		Version:       1,
		Class:         ClassString,
		Size:          size,
		StringPadding: pad,
		CharSet:       cset,
		bits:          uint32(pad) | uint32(cset)<<4,
	}
}

// NewVarLenStringDatatype returns a variable-length string type. Size is the
// reference size for 8-byte offsets; writers using other widths adjust it.
func NewVarLenStringDatatype(cset CharacterSet) *Datatype {
	base := NewStringDatatype(1, PadNullTerm, cset)
	e := binary.NewEncoder(binary.DefaultSizes)
	base.Encode(e)
	return &Datatype{
		Version:        1,
		Class:          ClassVarLen,
		Size:           uint32(binary.DefaultSizes.VarLenRefSize()),
		CharSet:        cset,
		IsVarLenString: true,
		Base:           base,
		bits:           1 | uint32(cset)<<8,
		props:          e.Bytes(),
	}
}

// Encode writes the type header followed by the stored properties.
func (m *Datatype) Encode(e *binary.Encoder) {
	e.U8(m.Version<<4 | uint8(m.Class)&0x0f)
	e.Uint(uint64(m.bits), 3)
	e.U32(m.Size)
	e.Raw(m.props)
}

// EncodedSize returns the number of bytes Encode writes.
func (m *Datatype) EncodedSize() int { return 8 + len(m.props) }

func decodeDatatype(d *binary.Decoder) *Datatype {
	b := d.U8()
	m := &Datatype{Version: b >> 4, Class: DatatypeClass(b & 0x0f)}
	m.bits = uint32(d.Uint(3))
	m.Size = d.U32()
	start := d.Pos()

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.ByteOrder = ByteOrder(m.bits & 1)
		m.Signed = m.bits&0x08 != 0
		d.Skip(4)
	case ClassFloatPoint:
		m.ByteOrder = ByteOrder(m.bits & 1)
		if m.bits&0x40 != 0 {
			m.ByteOrder = OrderVAX
		}
		m.Signed = true
		d.Skip(12)
	case ClassTime:
		m.ByteOrder = ByteOrder(m.bits & 1)
		d.Skip(2)
	case ClassString:
		m.StringPadding = StringPadding(m.bits & 0x0f)
		m.CharSet = CharacterSet(m.bits >> 4 & 0x0f)
	case ClassOpaque:
		d.Skip(int(m.bits & 0xff))
	case ClassReference:
	case ClassCompound:
		n := int(m.bits & 0xffff)
		for i := 0; i < n && d.Err() == nil; i++ {
			m.Members = append(m.Members, m.decodeMember(d))
		}
	case ClassEnum:
		m.Base = decodeDatatype(d)
		n := int(m.bits & 0xffff)
		for i := 0; i < n && d.Err() == nil; i++ {
			decodeName(d, m.Version)
		}
		if m.Base != nil {
			d.Skip(n * int(m.Base.Size))
		}
	case ClassVarLen:
		m.IsVarLenString = m.bits&0x0f == 1
		m.StringPadding = StringPadding(m.bits >> 4 & 0x0f)
		m.CharSet = CharacterSet(m.bits >> 8 & 0x0f)
		m.Base = decodeDatatype(d)
	case ClassArray:
		n := int(d.U8())
		if m.Version < 3 {
			d.Skip(3)
		}
		for i := 0; i < n && d.Err() == nil; i++ {
			m.Dims = append(m.Dims, d.U32())
		}
		if m.Version < 3 {
			d.Skip(4 * n)
		}
		m.Base = decodeDatatype(d)
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: datatype class %d", ErrUnsupported, m.Class))
		}
	}

	if p := d.Since(start); len(p) > 0 {
		m.props = append([]byte(nil), p...)
	}
	return m
}

func (m *Datatype) decodeMember(d *binary.Decoder) Member {
	var mem Member
	mem.Name = decodeName(d, m.Version)
	switch m.Version {
	case 1:
		mem.Offset = d.U32()
		// Dimensionality, permutation and four dimension sizes of the
		// pre-array member encoding.
		d.Skip(1 + 3 + 4 + 4 + 16)
	case 2:
		mem.Offset = d.U32()
	default:
		mem.Offset = uint32(d.Uint(binary.UintWidth(uint64(m.Size))))
	}
	mem.Type = decodeDatatype(d)
	return mem
}

// decodeName reads a member name, padded to eight bytes before version 3.
func decodeName(d *binary.Decoder, version uint8) string {
	start := d.Pos()
	s := d.CString()
	if version < 3 && d.Err() == nil {
		d.Seek(start + binary.AlignUp(d.Pos()-start, 8))
	}
	return s
}
