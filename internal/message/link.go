package message

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

type LinkType uint8

const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// Link is a named entry of a new-style group.
type Link struct {
	Name    string
	Kind    LinkType
	CharSet CharacterSet

	HasOrder      bool
	CreationOrder uint64

	// Address is the object header of a hard link.
	Address uint64
	// Target is the path of a soft link.
	Target string
	// File and Path name the target of an external link.
	File string
	Path string
}

func (m *Link) Type() Type { return TypeLink }

// NewHardLink returns a link to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Name: name, Kind: LinkHard, CharSet: CharsetUTF8, Address: addr}
}

// NewSoftLink returns a link resolved by path when traversed.
func NewSoftLink(name, target string) *Link {
	return &Link{Name: name, Kind: LinkSoft, CharSet: CharsetUTF8, Target: target}
}

func decodeLink(d *binary.Decoder) *Link {
	m := &Link{}
	if v := d.U8(); v != 1 && d.Err() == nil {
		d.Fail(fmt.Errorf("%w: link version %d", ErrUnsupported, v))
		return m
	}
	flags := d.U8()
	if flags&0x08 != 0 {
		m.Kind = LinkType(d.U8())
	}
	if flags&0x04 != 0 {
		m.HasOrder = true
		m.CreationOrder = d.U64()
	}
	if flags&0x10 != 0 {
		m.CharSet = CharacterSet(d.U8())
	}
	nameLen := d.Uint(1 << (flags & 0x03))
	m.Name = string(d.Bytes(int(nameLen)))

	switch m.Kind {
	case LinkHard:
		m.Address = d.Addr()
	case LinkSoft:
		m.Target = string(d.Bytes(int(d.U16())))
	case LinkExternal:
		body := binary.NewDecoder(d.Bytes(int(d.U16())), d.Sizes())
		// Version and flags nibbles; no flags are defined.
		body.U8()
		m.File = body.CString()
		m.Path = body.CString()
		if err := body.Err(); err != nil {
			d.Fail(err)
		}
	default:
		if d.Err() == nil {
			d.Fail(fmt.Errorf("%w: link type %d", ErrUnsupported, m.Kind))
		}
	}
	return m
}

// Encode writes a version 1 link, storing the type and character set only
// when they differ from the defaults.
func (m *Link) Encode(e *binary.Encoder) {
	width := binary.UintWidth(uint64(len(m.Name)))
	var flags uint8
	switch {
	case width > 4:
		flags, width = 3, 8
	case width > 2:
		flags, width = 2, 4
	case width > 1:
		flags, width = 1, 2
	}
	if m.Kind != LinkHard {
		flags |= 0x08
	}
	if m.HasOrder {
		flags |= 0x04
	}
	if m.CharSet != CharsetASCII {
		flags |= 0x10
	}

	e.U8(1)
	e.U8(flags)
	if flags&0x08 != 0 {
		e.U8(uint8(m.Kind))
	}
	if m.HasOrder {
		e.U64(m.CreationOrder)
	}
	if flags&0x10 != 0 {
		e.U8(uint8(m.CharSet))
	}
	e.Uint(uint64(len(m.Name)), width)
	e.Raw([]byte(m.Name))

	switch m.Kind {
	case LinkHard:
		e.Addr(m.Address)
	case LinkSoft:
		e.U16(uint16(len(m.Target)))
		e.Raw([]byte(m.Target))
	case LinkExternal:
		e.U16(uint16(1 + len(m.File) + 1 + len(m.Path) + 1))
		e.U8(0)
		e.String(m.File)
		e.String(m.Path)
	}
}

// LinkInfo accompanies the links of a new-style group. Undefined heap and
// index addresses mean the links are stored compactly as Link messages.
type LinkInfo struct {
	Flags            uint8
	MaxCreationIndex uint64
	Heap             uint64
	NameIndex        uint64
	OrderIndex       uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// NewLinkInfo returns link info for a compact group without creation order
// tracking.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{Heap: binary.Undefined, NameIndex: binary.Undefined, OrderIndex: binary.Undefined}
}

// Dense reports whether links live in a fractal heap.
func (m *LinkInfo) Dense() bool { return m.Heap != binary.Undefined }

func decodeLinkInfo(d *binary.Decoder) *LinkInfo {
	m := NewLinkInfo()
	if v := d.U8(); v != 0 && d.Err() == nil {
		d.Fail(fmt.Errorf("%w: link info version %d", ErrUnsupported, v))
		return m
	}
	m.Flags = d.U8()
	if m.Flags&0x01 != 0 {
		m.MaxCreationIndex = d.U64()
	}
	m.Heap = d.Addr()
	m.NameIndex = d.Addr()
	if m.Flags&0x02 != 0 {
		m.OrderIndex = d.Addr()
	}
	return m
}

func (m *LinkInfo) Encode(e *binary.Encoder) {
	e.U8(0)
	e.U8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.U64(m.MaxCreationIndex)
	}
	e.Addr(m.Heap)
	e.Addr(m.NameIndex)
	if m.Flags&0x02 != 0 {
		e.Addr(m.OrderIndex)
	}
}

// GroupInfo carries the storage thresholds of a new-style group.
type GroupInfo struct {
	Flags         uint8
	MaxCompact    uint16
	MinDense      uint16
	EstEntries    uint16
	EstNameLength uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func decodeGroupInfo(d *binary.Decoder) *GroupInfo {
	m := &GroupInfo{}
	if v := d.U8(); v != 0 && d.Err() == nil {
		d.Fail(fmt.Errorf("%w: group info version %d", ErrUnsupported, v))
		return m
	}
	m.Flags = d.U8()
	if m.Flags&0x01 != 0 {
		m.MaxCompact = d.U16()
		m.MinDense = d.U16()
	}
	if m.Flags&0x02 != 0 {
		m.EstEntries = d.U16()
		m.EstNameLength = d.U16()
	}
	return m
}

func (m *GroupInfo) Encode(e *binary.Encoder) {
	e.U8(0)
	e.U8(m.Flags)
	if m.Flags&0x01 != 0 {
		e.U16(m.MaxCompact)
		e.U16(m.MinDense)
	}
	if m.Flags&0x02 != 0 {
		e.U16(m.EstEntries)
		e.U16(m.EstNameLength)
	}
}
