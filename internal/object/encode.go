package object

import (
	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// MinGroupChunkSize is the smallest message area given to a group header,
// leaving room for links added later the way h5py files do.
const MinGroupChunkSize = 120

// nilHeader is the size of a NIL message header in a version 2 chunk.
const nilHeader = 4

// Encode returns a version 2 object header holding msgs in one chunk whose
// message area is at least minChunk bytes.
func Encode(msgs []message.Encodable, s binary.Sizes, minChunk int) []byte {
	body := binary.NewEncoder(s)
	for _, m := range msgs {
		payload := message.Encode(m, s)
		var flags uint8
		if m.Type() == message.TypeDatatype {
			flags = message.FlagConstant
		}
		body.U8(uint8(m.Type()))
		body.U16(uint16(len(payload)))
		body.U8(flags)
		body.Raw(payload)
	}

	if gap := minChunk - body.Len(); gap > 0 {
		// A NIL message cannot be shorter than its own header.
		if gap < nilHeader {
			gap = nilHeader
		}
		body.U8(uint8(message.TypeNIL))
		body.U16(uint16(gap - nilHeader))
		body.U8(0)
		body.Zeros(gap - nilHeader)
	}

	size := body.Len()
	var flags uint8
	width := 1
	switch {
	case size > 0xffff:
		flags, width = 2, 4
	case size > 0xff:
		flags, width = 1, 2
	}

	e := binary.NewEncoder(s)
	e.Raw([]byte(signature))
	e.U8(2)
	e.U8(flags)
	e.Uint(uint64(size), width)
	e.Raw(body.Bytes())
	e.Checksum()
	return e.Bytes()
}

// GroupMessages returns the messages of a compact new-style group.
func GroupMessages(links []*message.Link) []message.Encodable {
	msgs := []message.Encodable{message.NewLinkInfo(), &message.GroupInfo{}}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages returns the messages describing a dataset. The pipeline
// may be nil.
func DatasetMessages(ds *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, pipeline *message.FilterPipeline) []message.Encodable {
	msgs := []message.Encodable{ds, dt, message.NewFillValue(layout.Class), layout}
	if pipeline != nil && len(pipeline.Filters) > 0 {
		msgs = append(msgs, pipeline)
	}
	return msgs
}
