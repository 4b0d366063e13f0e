package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/message"
)

type stage struct {
	pos      int
	optional bool
	f        Filter
}

// Pipeline applies the filters of a dataset to its chunks.
type Pipeline struct {
	stages []stage
}

// NewPipeline builds the pipeline described by m. A nil or empty message
// gives an empty pipeline.
func NewPipeline(m *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if m == nil {
		return p, nil
	}
	for i, info := range m.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.stages = append(p.stages, stage{pos: i, optional: info.IsOptional(), f: f})
		}
	}
	return p, nil
}

// Empty reports whether the pipeline has no stages.
func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }

// Decode undoes the filters of a stored chunk, last stage first. Bit i of
// mask set means filter i was not applied to this chunk.
func (p *Pipeline) Decode(b []byte, mask uint32) ([]byte, error) {
	var err error
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if mask&(1<<s.pos) != 0 {
			continue
		}
		if b, err = s.f.Decode(b); err != nil {
			return nil, fmt.Errorf("%s: %w", Name(s.f.ID()), err)
		}
	}
	return b, nil
}

// Encode applies the filters in order and returns the chunk mask. An
// optional filter that fails is skipped and recorded in the mask.
func (p *Pipeline) Encode(b []byte) ([]byte, uint32, error) {
	var mask uint32
	for _, s := range p.stages {
		out, err := s.f.Encode(b)
		if err != nil {
			if s.optional {
				mask |= 1 << s.pos
				continue
			}
			return nil, 0, fmt.Errorf("%s: %w", Name(s.f.ID()), err)
		}
		b = out
	}
	return b, mask, nil
}

// Message returns the filter pipeline message for filters in order.
func Message(filters ...Filter) *message.FilterPipeline {
	m := &message.FilterPipeline{Version: 2}
	for _, f := range filters {
		info := message.Filter{ID: f.ID()}
		switch f := f.(type) {
		case *Deflate:
			info.ClientData = []uint32{uint32(f.Level)}
		case *Shuffle:
			info.ClientData = []uint32{uint32(f.Size)}
		case *Zstd:
			info.Flags = message.FilterOptional
			info.ClientData = []uint32{uint32(f.Level)}
		}
		m.Filters = append(m.Filters, info)
	}
	return m
}
