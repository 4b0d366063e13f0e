package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/btree"
	"github.com/robert-malhotra/go-lh5/internal/filter"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Chunked reads chunked storage through any of the chunk index types.
// Chunks that were never written read as zeros.
type Chunked struct {
	src      *binary.Source
	layout   *message.DataLayout
	space    *message.Dataspace
	dims     []uint64
	elem     uint64
	size     uint64
	pipeline *filter.Pipeline
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// Index returns the chunk index type.
func (c *Chunked) Index() message.ChunkIndex { return c.layout.Index }

func (c *Chunked) Read() ([]byte, error) {
	out := make([]byte, c.size)
	if c.size == 0 {
		return out, nil
	}

	chunks, err := c.Chunks()
	if err != nil {
		return nil, fmt.Errorf("%s chunk index: %w", c.layout.Index, err)
	}

	chunk := c.chunkShape()
	full := c.layout.ChunkBytes()
	for _, ch := range chunks {
		if c.src.Sizes().IsUndefined(ch.Address) || ch.Size == 0 {
			continue
		}
		if len(ch.Offset) != len(c.dims) {
			return nil, fmt.Errorf("%w: chunk offset rank %d", ErrCorrupt, len(ch.Offset))
		}
		data, err := c.src.ReadAt(ch.Address, int(ch.Size))
		if err != nil {
			return nil, fmt.Errorf("chunk %v: %w", ch.Offset, err)
		}
		if !c.unfilteredEdge(ch.Offset, chunk) {
			if data, err = c.pipeline.Decode(data, ch.FilterMask); err != nil {
				return nil, fmt.Errorf("chunk %v: %w", ch.Offset, err)
			}
		}
		if uint64(len(data)) < full {
			return nil, fmt.Errorf("%w: chunk %v holds %d of %d bytes", ErrCorrupt, ch.Offset, len(data), full)
		}
		copyChunk(out, data, c.dims, chunk, ch.Offset, c.elem, false)
	}
	return out, nil
}

// unfilteredEdge reports whether a partial edge chunk was stored without
// filters.
func (c *Chunked) unfilteredEdge(off, chunk []uint64) bool {
	if c.layout.Flags&message.LayoutNoEdgeFilter == 0 {
		return false
	}
	for i, o := range off {
		if o+chunk[i] > c.dims[i] {
			return true
		}
	}
	return false
}

func (c *Chunked) chunkShape() []uint64 {
	chunk := make([]uint64, len(c.layout.ChunkDims))
	for i, v := range c.layout.ChunkDims {
		chunk[i] = uint64(v)
	}
	return chunk
}

// Chunks lists the stored chunks with their element offsets.
func (c *Chunked) Chunks() ([]btree.Chunk, error) {
	l := c.layout
	if c.src.Sizes().IsUndefined(l.Address) {
		return nil, nil
	}

	switch l.Index {
	case message.IndexBTreeV1:
		return btree.ReadChunksV1(c.src, l.Address, len(c.dims))
	case message.IndexBTreeV2:
		return btree.ReadChunksV2(c.src, l.Address, l.ChunkDims, l.ChunkBytes())
	case message.IndexSingle:
		ch := btree.Chunk{Offset: make([]uint64, len(c.dims)), Address: l.Address, Size: l.ChunkBytes()}
		if l.Flags&message.LayoutSingleFiltered != 0 {
			ch.Size, ch.FilterMask = l.FilteredSize, l.FilterMask
		}
		return []btree.Chunk{ch}, nil
	case message.IndexImplicit:
		grid := newGrid(c.dims, c.chunkShape())
		entries := make([]entry, grid.count())
		for i := range entries {
			entries[i] = entry{addr: l.Address + uint64(i)*l.ChunkBytes(), size: l.ChunkBytes()}
		}
		return grid.chunks(entries, nil), nil
	case message.IndexFixedArray:
		entries, err := readFixedArray(c.src, l.Address, l.ChunkBytes())
		if err != nil {
			return nil, err
		}
		return newGrid(c.dims, c.chunkShape()).chunks(entries, nil), nil
	case message.IndexExtArray:
		entries, err := readExtArray(c.src, l.Address, l.ChunkBytes())
		if err != nil {
			return nil, err
		}
		grid := newGrid(c.dims, c.chunkShape())
		return grid.chunks(entries, c.extArrayOrder(grid)), nil
	}
	return nil, fmt.Errorf("%w: chunk index %s", binary.ErrUnsupported, l.Index)
}

// extArrayOrder returns the linear index function of an extensible array
// index: the unlimited dimension varies slowest and the others are counted
// against their maximum sizes.
func (c *Chunked) extArrayOrder(g *grid) func(scaled []uint64) uint64 {
	unlim := 0
	bound := append([]uint64(nil), c.dims...)
	for i, m := range c.space.MaxDims {
		if i >= len(bound) {
			break
		}
		if m == message.Unlimited {
			unlim = i
		} else {
			bound[i] = m
		}
	}
	order := []int{unlim}
	for i := range bound {
		if i != unlim {
			order = append(order, i)
		}
	}
	down := make([]uint64, len(order))
	acc := uint64(1)
	for k := len(order) - 1; k >= 0; k-- {
		down[k] = acc
		d := order[k]
		acc *= (bound[d] + g.chunk[d] - 1) / g.chunk[d]
	}
	return func(scaled []uint64) uint64 {
		var idx uint64
		for k, d := range order {
			idx += scaled[d] * down[k]
		}
		return idx
	}
}

// entry is one element of an array chunk index.
type entry struct {
	addr uint64
	size uint64
	mask uint32
}

// grid enumerates the chunks covering a dataset in row-major order.
type grid struct {
	dims  []uint64
	chunk []uint64
	n     []uint64
}

func newGrid(dims, chunk []uint64) *grid {
	g := &grid{dims: dims, chunk: chunk, n: make([]uint64, len(dims))}
	for i := range dims {
		g.n[i] = (dims[i] + chunk[i] - 1) / chunk[i]
	}
	return g
}

func (g *grid) count() int {
	n := uint64(1)
	for _, v := range g.n {
		n *= v
	}
	return int(n)
}

// each calls fn with the scaled coordinates of every chunk.
func (g *grid) each(fn func(i int, scaled []uint64)) {
	total := g.count()
	scaled := make([]uint64, len(g.n))
	for i := 0; i < total; i++ {
		fn(i, scaled)
		for d := len(scaled) - 1; d >= 0; d-- {
			scaled[d]++
			if scaled[d] < g.n[d] {
				break
			}
			scaled[d] = 0
		}
	}
}

// chunks pairs index entries with chunk offsets. A nil order means entries
// are in row-major chunk order.
func (g *grid) chunks(entries []entry, order func([]uint64) uint64) []btree.Chunk {
	var out []btree.Chunk
	g.each(func(i int, scaled []uint64) {
		idx := uint64(i)
		if order != nil {
			idx = order(scaled)
		}
		if idx >= uint64(len(entries)) || entries[idx].addr == binary.Undefined {
			return
		}
		e := entries[idx]
		off := make([]uint64, len(scaled))
		for d, s := range scaled {
			off[d] = s * g.chunk[d]
		}
		out = append(out, btree.Chunk{Offset: off, Address: e.addr, Size: e.size, FilterMask: e.mask})
	})
	return out
}

// copyChunk moves the part of a chunk at off that lies inside the dataset
// between the dataset buffer and the chunk buffer. toChunk selects the
// direction.
func copyChunk(data, chunkData []byte, dims, chunk, off []uint64, elem uint64, toChunk bool) {
	rank := len(dims)
	extent := make([]uint64, rank)
	for i := range dims {
		if off[i] >= dims[i] {
			return
		}
		extent[i] = min(chunk[i], dims[i]-off[i])
	}

	dataStride := make([]uint64, rank)
	chunkStride := make([]uint64, rank)
	dataStride[rank-1], chunkStride[rank-1] = elem, elem
	for i := rank - 2; i >= 0; i-- {
		dataStride[i] = dataStride[i+1] * dims[i+1]
		chunkStride[i] = chunkStride[i+1] * chunk[i+1]
	}

	row := extent[rank-1] * elem
	idx := make([]uint64, rank)
	for {
		var d, c uint64
		for i := range idx {
			d += (off[i] + idx[i]) * dataStride[i]
			c += idx[i] * chunkStride[i]
		}
		if toChunk {
			copy(chunkData[c:c+row], data[d:d+row])
		} else {
			copy(data[d:d+row], chunkData[c:c+row])
		}

		i := rank - 2
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < extent[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
