package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/btree"
	"github.com/robert-malhotra/go-lh5/internal/filter"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Storage hands out file space and writes to it.
type Storage interface {
	Alloc(size uint64) uint64
	WriteAt(addr uint64, b []byte) error
}

// WriteChunked splits data into chunks of the given shape, runs each through
// pipeline and writes it. One chunk uses a single chunk index and more use a
// fixed array index. Edge chunks are zero padded to the full chunk shape.
func WriteChunked(st Storage, s binary.Sizes, data []byte, dims []uint64, chunk []uint32, elem uint32, pipeline *filter.Pipeline) (*message.DataLayout, error) {
	if len(chunk) != len(dims) || len(dims) == 0 {
		return nil, fmt.Errorf("%w: chunk rank %d for dataset rank %d", ErrCorrupt, len(chunk), len(dims))
	}
	shape := make([]uint64, len(chunk))
	for i, v := range chunk {
		if v == 0 {
			return nil, fmt.Errorf("%w: chunk dimension %d is zero", ErrCorrupt, i)
		}
		shape[i] = uint64(v)
	}
	want := uint64(elem)
	for _, d := range dims {
		want *= d
	}
	if uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: %d data bytes for %d", ErrCorrupt, len(data), want)
	}
	if pipeline == nil {
		pipeline = &filter.Pipeline{}
	}

	g := newGrid(dims, shape)
	index := message.IndexFixedArray
	if g.count() == 1 {
		index = message.IndexSingle
	}
	l := message.NewChunkedLayout(chunk, elem, index)
	full := l.ChunkBytes()
	if g.count() == 0 {
		return l, nil
	}

	var (
		chunks []btree.Chunk
		err    error
	)
	g.each(func(_ int, scaled []uint64) {
		if err != nil {
			return
		}
		off := make([]uint64, len(scaled))
		for d, v := range scaled {
			off[d] = v * shape[d]
		}
		buf := make([]byte, full)
		copyChunk(data, buf, dims, shape, off, uint64(elem), true)

		stored, mask, ferr := pipeline.Encode(buf)
		if ferr != nil {
			err = fmt.Errorf("chunk %v: %w", off, ferr)
			return
		}
		addr := st.Alloc(uint64(len(stored)))
		if err = st.WriteAt(addr, stored); err != nil {
			return
		}
		chunks = append(chunks, btree.Chunk{Offset: off, Address: addr, Size: uint64(len(stored)), FilterMask: mask})
	})
	if err != nil {
		return nil, err
	}

	filtered := !pipeline.Empty()
	if index == message.IndexSingle {
		l.Address = chunks[0].Address
		if filtered {
			l.Flags |= message.LayoutSingleFiltered
			l.FilteredSize = chunks[0].Size
			l.FilterMask = chunks[0].FilterMask
		}
		return l, nil
	}

	l.Address, err = writeFixedArray(st, s, chunks, filtered, full, l.PageBits)
	if err != nil {
		return nil, fmt.Errorf("fixed array index: %w", err)
	}
	return l, nil
}

// writeFixedArray writes a fixed array header and data block listing chunks
// in order and returns the header address.
func writeFixedArray(st Storage, s binary.Sizes, chunks []btree.Chunk, filtered bool, full uint64, pageBits uint8) (uint64, error) {
	client := uint8(clientChunks)
	elemSize := s.Offset
	width := 0
	if filtered {
		client = clientFilteredChunks
		width = btree.ChunkSizeWidth(full)
		elemSize += width + 4
	}

	encodeEntry := func(e *binary.Encoder, c btree.Chunk) {
		e.Addr(c.Address)
		if filtered {
			e.Uint(c.Size, width)
			e.U32(c.FilterMask)
		}
	}

	n := len(chunks)
	pageLen := 1 << pageBits
	npages := 0
	if n > pageLen {
		npages = (n + pageLen - 1) / pageLen
	}

	hdrSize := 12 + s.Length + s.Offset
	hdrAddr := st.Alloc(uint64(hdrSize))

	db := binary.NewEncoder(s)
	db.Raw([]byte("FADB"))
	db.U8(0)
	db.U8(client)
	db.Addr(hdrAddr)
	if npages == 0 {
		for _, c := range chunks {
			encodeEntry(db, c)
		}
		db.Checksum()
	} else {
		bitmap := make([]byte, (npages+7)/8)
		for p := 0; p < npages; p++ {
			bitmap[p/8] |= 0x80 >> (p % 8)
		}
		db.Raw(bitmap)
		db.Checksum()
		for p := 0; p < npages; p++ {
			page := binary.NewEncoder(s)
			for _, c := range chunks[p*pageLen : min((p+1)*pageLen, n)] {
				encodeEntry(page, c)
			}
			page.Checksum()
			db.Raw(page.Bytes())
		}
	}
	dbAddr := st.Alloc(uint64(db.Len()))

	hdr := binary.NewEncoder(s)
	hdr.Raw([]byte("FAHD"))
	hdr.U8(0)
	hdr.U8(client)
	hdr.U8(uint8(elemSize))
	hdr.U8(pageBits)
	hdr.Length(uint64(n))
	hdr.Addr(dbAddr)
	hdr.Checksum()

	if err := st.WriteAt(hdrAddr, hdr.Bytes()); err != nil {
		return 0, err
	}
	if err := st.WriteAt(dbAddr, db.Bytes()); err != nil {
		return 0, err
	}
	return hdrAddr, nil
}
