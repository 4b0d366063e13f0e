// Package object reads and writes HDF5 object headers.
//
// Version 1 headers appear in files written with the earliest library
// format; version 2 headers carry an OHDR signature and checksums. Both are
// decoded into the same Header, continuation blocks included.
package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

const (
	signature             = "OHDR"
	continuationSignature = "OCHK"

	// maxContinuations bounds the number of header blocks followed, which
	// also stops continuation cycles.
	maxContinuations = 1 << 12
)

// Header is a decoded object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32

	// Times are seconds since the epoch, present when Flags&0x20 is set.
	AccessTime, ModTime, ChangeTime, BirthTime uint32

	Messages []message.Message
}

// Read decodes the object header at addr.
func Read(src *binary.Source, addr uint64) (*Header, error) {
	h, err := read(src, addr)
	if err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", addr, err)
	}
	return h, nil
}

func read(src *binary.Source, addr uint64) (*Header, error) {
	b, err := src.ReadAt(addr, 4)
	if err != nil {
		return nil, err
	}
	switch {
	case string(b) == signature:
		return readV2(src, addr)
	case b[0] == 1:
		return readV1(src, addr)
	}
	return nil, fmt.Errorf("%w: object header version %d", binary.ErrUnsupported, b[0])
}

func readV1(src *binary.Source, addr uint64) (*Header, error) {
	d, err := src.Decoder(addr, 16)
	if err != nil {
		return nil, err
	}
	h := &Header{Version: d.U8(), Address: addr}
	d.Skip(3)
	h.RefCount = d.U32()
	size := d.U32()

	blocks := []message.Continuation{{Address: addr + 16, Length: uint64(size)}}
	for i := 0; len(blocks) > 0; i++ {
		if i == maxContinuations {
			return nil, errTooManyBlocks
		}
		blk := blocks[0]
		blocks = blocks[1:]
		d, err := src.Decoder(blk.Address, int(blk.Length))
		if err != nil {
			return nil, err
		}
		for d.Remaining() >= 8 {
			typ := message.Type(d.U16())
			n := int(d.U16())
			flags := d.U8()
			d.Skip(3)
			body := d.Bytes(n)
			if err := d.Err(); err != nil {
				return nil, err
			}
			if err := h.add(typ, flags, body, src.Sizes(), &blocks); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func readV2(src *binary.Source, addr uint64) (*Header, error) {
	d, err := src.Decoder(addr, 6)
	if err != nil {
		return nil, err
	}
	d.Skip(4)
	h := &Header{Version: d.U8(), Address: addr, Flags: d.U8(), RefCount: 1}
	if h.Version != 2 {
		return nil, fmt.Errorf("%w: object header version %d", binary.ErrUnsupported, h.Version)
	}

	width := 1 << (h.Flags & 0x03)
	n := width
	if h.Flags&0x20 != 0 {
		n += 16
	}
	if h.Flags&0x10 != 0 {
		n += 4
	}
	if d, err = src.Decoder(addr+6, n); err != nil {
		return nil, err
	}
	if h.Flags&0x20 != 0 {
		h.AccessTime = d.U32()
		h.ModTime = d.U32()
		h.ChangeTime = d.U32()
		h.BirthTime = d.U32()
	}
	if h.Flags&0x10 != 0 {
		// Attribute storage phase change thresholds.
		d.Skip(4)
	}
	size := int(d.Uint(width))
	prefix := 6 + n

	block, err := src.ReadAt(addr, prefix+size+4)
	if err != nil {
		return nil, err
	}
	if err := binary.VerifyLookup3(block); err != nil {
		return nil, err
	}

	var blocks []message.Continuation
	if err := h.parseV2(block[prefix:prefix+size], src.Sizes(), &blocks); err != nil {
		return nil, err
	}
	for i := 0; len(blocks) > 0; i++ {
		if i == maxContinuations {
			return nil, errTooManyBlocks
		}
		blk := blocks[0]
		blocks = blocks[1:]
		block, err := src.ReadAt(blk.Address, int(blk.Length))
		if err != nil {
			return nil, err
		}
		if len(block) < 8 || string(block[:4]) != continuationSignature {
			return nil, fmt.Errorf("%w: continuation block at 0x%x", binary.ErrSignature, blk.Address)
		}
		if err := binary.VerifyLookup3(block); err != nil {
			return nil, err
		}
		if err := h.parseV2(block[4:len(block)-4], src.Sizes(), &blocks); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Header) parseV2(chunk []byte, s binary.Sizes, blocks *[]message.Continuation) error {
	hdr := 4
	if h.Flags&0x04 != 0 {
		hdr += 2
	}
	d := binary.NewDecoder(chunk, s)
	// Fewer bytes than a message header left at the end are a gap.
	for d.Remaining() >= hdr {
		typ := message.Type(d.U8())
		n := int(d.U16())
		flags := d.U8()
		if h.Flags&0x04 != 0 {
			d.Skip(2)
		}
		body := d.Bytes(n)
		if err := d.Err(); err != nil {
			return err
		}
		if err := h.add(typ, flags, body, s, blocks); err != nil {
			return err
		}
	}
	return nil
}

var errTooManyBlocks = fmt.Errorf("%w: more than %d header continuation blocks", binary.ErrUnsupported, maxContinuations)

// add decodes one message. Messages in unsupported variants are kept as
// *message.Unknown so the rest of the object stays readable.
func (h *Header) add(typ message.Type, flags uint8, body []byte, s binary.Sizes, blocks *[]message.Continuation) error {
	if typ == message.TypeNIL {
		return nil
	}
	m, err := message.Parse(typ, flags, body, s)
	if errors.Is(err, binary.ErrUnsupported) {
		m, err = &message.Unknown{MsgType: typ, Flags: flags, Data: body}, nil
	}
	if err != nil {
		return err
	}
	if c, ok := m.(*message.Continuation); ok {
		*blocks = append(*blocks, *c)
		return nil
	}
	h.Messages = append(h.Messages, m)
	return nil
}

// Message returns the first message of type typ, or nil.
func (h *Header) Message(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			if _, unknown := m.(*message.Unknown); !unknown {
				return m
			}
		}
	}
	return nil
}

// MessagesOf returns every decoded message of type typ in header order.
func (h *Header) MessagesOf(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if _, unknown := m.(*message.Unknown); !unknown && m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Message(message.TypeDataspace).(*message.Dataspace)
	return m
}

func (h *Header) Datatype() *message.Datatype {
	m, _ := h.Message(message.TypeDatatype).(*message.Datatype)
	return m
}

func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.Message(message.TypeDataLayout).(*message.DataLayout)
	return m
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Message(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}

func (h *Header) SymbolTable() *message.SymbolTable {
	m, _ := h.Message(message.TypeSymbolTable).(*message.SymbolTable)
	return m
}

func (h *Header) LinkInfo() *message.LinkInfo {
	m, _ := h.Message(message.TypeLinkInfo).(*message.LinkInfo)
	return m
}

func (h *Header) AttributeInfo() *message.AttributeInfo {
	m, _ := h.Message(message.TypeAttributeInfo).(*message.AttributeInfo)
	return m
}

// Links returns the link messages of a compact new-style group.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.MessagesOf(message.TypeLink) {
		out = append(out, m.(*message.Link))
	}
	return out
}

// Attributes returns the attribute messages in header order.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.MessagesOf(message.TypeAttribute) {
		out = append(out, m.(*message.Attribute))
	}
	return out
}

// IsDataset reports whether the object carries a dataspace, which only
// datasets have.
func (h *Header) IsDataset() bool { return h.Dataspace() != nil }

// IsGroup reports whether the object is an old- or new-style group.
func (h *Header) IsGroup() bool {
	return h.SymbolTable() != nil || h.LinkInfo() != nil || len(h.Links()) > 0
}
