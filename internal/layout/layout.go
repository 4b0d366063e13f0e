// Package layout reads and writes the raw storage of datasets.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/filter"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// ErrCorrupt is returned when storage does not match the dataset shape.
var ErrCorrupt = errors.New("layout: corrupt storage")

// Layout returns the elements of a dataset in row-major order.
type Layout interface {
	Class() message.LayoutClass
	Read() ([]byte, error)
}

// New returns the reader for the storage described by l. The data size is
// the number of elements of ds times the datatype size.
func New(l *message.DataLayout, ds *message.Dataspace, dt *message.Datatype, fp *message.FilterPipeline, src *binary.Source) (Layout, error) {
	if l == nil || ds == nil || dt == nil {
		return nil, fmt.Errorf("%w: missing layout, dataspace or datatype", ErrCorrupt)
	}
	size := ds.NumElements() * uint64(dt.Size)

	switch l.Class {
	case message.LayoutCompact:
		return &compact{data: l.Data, size: size}, nil
	case message.LayoutContiguous:
		return &contiguous{src: src, addr: l.Address, size: size}, nil
	case message.LayoutChunked:
		p, err := filter.NewPipeline(fp)
		if err != nil {
			return nil, err
		}
		dims := ds.Dims
		if ds.IsScalar() {
			dims = []uint64{1}
		}
		if len(l.ChunkDims) != len(dims) {
			return nil, fmt.Errorf("%w: chunk rank %d for dataset rank %d", ErrCorrupt, len(l.ChunkDims), len(dims))
		}
		for _, v := range l.ChunkDims {
			if v == 0 {
				return nil, fmt.Errorf("%w: zero chunk dimension", ErrCorrupt)
			}
		}
		return &Chunked{src: src, layout: l, space: ds, dims: dims, elem: uint64(dt.Size), size: size, pipeline: p}, nil
	}
	return nil, fmt.Errorf("%w: layout class %d", binary.ErrUnsupported, l.Class)
}

type compact struct {
	data []byte
	size uint64
}

func (c *compact) Class() message.LayoutClass { return message.LayoutCompact }

func (c *compact) Read() ([]byte, error) {
	if uint64(len(c.data)) < c.size {
		return nil, fmt.Errorf("%w: compact data holds %d of %d bytes", ErrCorrupt, len(c.data), c.size)
	}
	return append([]byte(nil), c.data[:c.size]...), nil
}

type contiguous struct {
	src  *binary.Source
	addr uint64
	size uint64
}

func (c *contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

// Read returns zeros for storage that was never allocated.
func (c *contiguous) Read() ([]byte, error) {
	if c.size == 0 || c.src.Sizes().IsUndefined(c.addr) {
		return make([]byte, c.size), nil
	}
	return c.src.ReadAt(c.addr, int(c.size))
}
