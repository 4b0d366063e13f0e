package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

// Client identifiers of array chunk indexes.
const (
	clientChunks         = 0
	clientFilteredChunks = 1
)

// maxIndexEntries bounds array index sizes read from a file.
const maxIndexEntries = 1 << 28

// elementCodec decodes array index elements of one client type.
type elementCodec struct {
	client uint8
	size   int
	width  int
	full   uint64
}

func newElementCodec(s binary.Sizes, client, size uint8, full uint64) (*elementCodec, error) {
	c := &elementCodec{client: client, size: int(size), full: full}
	switch client {
	case clientChunks:
		if c.size != s.Offset {
			return nil, fmt.Errorf("%w: chunk index element of %d bytes", ErrCorrupt, size)
		}
	case clientFilteredChunks:
		c.width = c.size - s.Offset - 4
		if c.width < 1 || c.width > 8 {
			return nil, fmt.Errorf("%w: filtered chunk index element of %d bytes", ErrCorrupt, size)
		}
	default:
		return nil, fmt.Errorf("%w: array index client %d", binary.ErrUnsupported, client)
	}
	return c, nil
}

func (c *elementCodec) decode(d *binary.Decoder) entry {
	e := entry{addr: d.Addr(), size: c.full}
	if c.client == clientFilteredChunks {
		e.size = d.Uint(c.width)
		e.mask = d.U32()
	}
	return e
}

func (c *elementCodec) decodeN(d *binary.Decoder, n int) []entry {
	out := make([]entry, n)
	for i := range out {
		out[i] = c.decode(d)
	}
	return out
}

// undefinedEntries stands in for array pages that were never written.
func undefinedEntries(n int) []entry {
	out := make([]entry, n)
	for i := range out {
		out[i].addr = binary.Undefined
	}
	return out
}

// bitSet reads a page initialization bitmap, most significant bit first.
func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(0x80>>(i%8)) != 0
}

// readBlock reads a checksummed block of n bytes and checks its signature.
func readBlock(src *binary.Source, addr uint64, n int, sig string) (*binary.Decoder, error) {
	b, err := src.ReadAt(addr, n)
	if err != nil {
		return nil, fmt.Errorf("%s at 0x%x: %w", sig, addr, err)
	}
	if err := binary.VerifyLookup3(b); err != nil {
		return nil, fmt.Errorf("%s at 0x%x: %w", sig, addr, err)
	}
	d := binary.NewDecoder(b[:n-4], src.Sizes())
	d.Signature(sig)
	if v := d.U8(); v != 0 && d.Err() == nil {
		return nil, fmt.Errorf("%w: %s version %d", binary.ErrUnsupported, sig, v)
	}
	return d, d.Err()
}

// readFixedArray returns the elements of the fixed array index at addr.
func readFixedArray(src *binary.Source, addr, full uint64) ([]entry, error) {
	s := src.Sizes()
	d, err := readBlock(src, addr, 12+s.Length+s.Offset, "FAHD")
	if err != nil {
		return nil, err
	}
	client, elemSize, pageBits := d.U8(), d.U8(), d.U8()
	n := d.Length()
	dblock := d.Addr()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if n > maxIndexEntries || pageBits > 32 {
		return nil, fmt.Errorf("%w: fixed array of %d elements", ErrCorrupt, n)
	}
	codec, err := newElementCodec(s, client, elemSize, full)
	if err != nil {
		return nil, err
	}
	if n == 0 || s.IsUndefined(dblock) {
		return nil, nil
	}

	count := int(n)
	pageLen := 1 << pageBits
	prefix := 10 + s.Offset
	if count <= pageLen {
		d, err := readBlock(src, dblock, prefix+count*codec.size, "FADB")
		if err != nil {
			return nil, err
		}
		d.Skip(1 + s.Offset)
		out := codec.decodeN(d, count)
		return out, d.Err()
	}

	npages := (count + pageLen - 1) / pageLen
	bitmapLen := (npages + 7) / 8
	d, err = readBlock(src, dblock, prefix+bitmapLen, "FADB")
	if err != nil {
		return nil, err
	}
	d.Skip(1 + s.Offset)
	bitmap := d.Bytes(bitmapLen)
	if err := d.Err(); err != nil {
		return nil, err
	}

	out := make([]entry, 0, count)
	pageAddr := dblock + uint64(prefix+bitmapLen)
	pageSize := pageLen*codec.size + 4
	for p := 0; p < npages; p++ {
		k := min(pageLen, count-p*pageLen)
		if !bitSet(bitmap, p) {
			out = append(out, undefinedEntries(k)...)
		} else {
			b, err := src.ReadAt(pageAddr+uint64(p*pageSize), k*codec.size+4)
			if err != nil {
				return nil, fmt.Errorf("fixed array page %d: %w", p, err)
			}
			if err := binary.VerifyLookup3(b); err != nil {
				return nil, fmt.Errorf("fixed array page %d: %w", p, err)
			}
			out = append(out, codec.decodeN(binary.NewDecoder(b, s), k)...)
		}
	}
	return out, nil
}

// extArray holds the creation parameters of an extensible array.
type extArray struct {
	src       *binary.Source
	codec     *elementCodec
	maxBits   int
	indexLen  int
	minElems  uint64
	minPtrs   int
	pageBits  int
	offsetLen int
	sblocks   []superBlockInfo
}

// superBlockInfo describes the data blocks reachable through one super
// block slot.
type superBlockInfo struct {
	ndblocks int
	nelems   uint64
}

// readExtArray returns the elements of the extensible array index at addr,
// up to the highest index ever set.
func readExtArray(src *binary.Source, addr, full uint64) ([]entry, error) {
	s := src.Sizes()
	d, err := readBlock(src, addr, 16+6*s.Length+s.Offset, "EAHD")
	if err != nil {
		return nil, err
	}
	ea := &extArray{src: src}
	client, elemSize := d.U8(), d.U8()
	ea.maxBits = int(d.U8())
	ea.indexLen = int(d.U8())
	ea.minElems = uint64(d.U8())
	ea.minPtrs = int(d.U8())
	ea.pageBits = int(d.U8())
	d.Skip(4 * s.Length)
	maxIndex := d.Length()
	d.Skip(s.Length)
	iblock := d.Addr()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if ea.maxBits == 0 || ea.maxBits > 64 || ea.minElems == 0 || ea.minPtrs == 0 || maxIndex > maxIndexEntries {
		return nil, fmt.Errorf("%w: extensible array parameters", ErrCorrupt)
	}
	if ea.codec, err = newElementCodec(s, client, elemSize, full); err != nil {
		return nil, err
	}
	if s.IsUndefined(iblock) || maxIndex == 0 {
		return nil, nil
	}

	ea.offsetLen = (ea.maxBits + 7) / 8
	nsblocks := 1 + ea.maxBits - (bits.Len64(ea.minElems) - 1)
	for u := 0; u < nsblocks; u++ {
		ea.sblocks = append(ea.sblocks, superBlockInfo{
			ndblocks: 1 << (u / 2),
			nelems:   uint64(1) << ((u + 1) / 2) * ea.minElems,
		})
	}
	return ea.read(iblock, int(maxIndex))
}

func (ea *extArray) read(addr uint64, want int) ([]entry, error) {
	s := ea.src.Sizes()
	inner := 2 * (bits.Len(uint(ea.minPtrs)) - 1)
	ndblocks := 2 * (ea.minPtrs - 1)
	nsblocks := len(ea.sblocks) - inner
	if nsblocks < 0 {
		nsblocks = 0
	}

	size := 10 + s.Offset + ea.indexLen*ea.codec.size + (ndblocks+nsblocks)*s.Offset
	d, err := readBlock(ea.src, addr, size, "EAIB")
	if err != nil {
		return nil, err
	}
	d.Skip(1 + s.Offset)
	out := ea.codec.decodeN(d, ea.indexLen)
	dblocks := make([]uint64, ndblocks)
	for i := range dblocks {
		dblocks[i] = d.Addr()
	}
	sblocks := make([]uint64, nsblocks)
	for i := range sblocks {
		sblocks[i] = d.Addr()
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	next := 0
	for u := 0; u < len(ea.sblocks) && len(out) < want; u++ {
		info := ea.sblocks[u]
		if u < inner {
			for k := 0; k < info.ndblocks && len(out) < want && next < len(dblocks); k++ {
				es, err := ea.dataBlock(dblocks[next], info.nelems, nil)
				if err != nil {
					return nil, err
				}
				out = append(out, es...)
				next++
			}
			continue
		}
		es, err := ea.superBlock(sblocks[u-inner], info, want-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

func (ea *extArray) pages(nelems uint64) int {
	pageLen := uint64(1) << ea.pageBits
	if nelems <= pageLen {
		return 0
	}
	return int(nelems / pageLen)
}

// superBlock reads the data blocks of one super block, stopping once limit
// elements are collected.
func (ea *extArray) superBlock(addr uint64, info superBlockInfo, limit int) ([]entry, error) {
	s := ea.src.Sizes()
	if s.IsUndefined(addr) {
		return undefinedEntries(min(info.ndblocks*int(info.nelems), limit)), nil
	}
	npages := ea.pages(info.nelems)
	bitmapLen := 0
	if npages > 0 {
		bitmapLen = info.ndblocks * ((npages + 7) / 8)
	}
	size := 10 + s.Offset + ea.offsetLen + bitmapLen + info.ndblocks*s.Offset
	d, err := readBlock(ea.src, addr, size, "EASB")
	if err != nil {
		return nil, err
	}
	d.Skip(1 + s.Offset + ea.offsetLen)
	bitmap := d.Bytes(bitmapLen)
	dblocks := make([]uint64, info.ndblocks)
	for i := range dblocks {
		dblocks[i] = d.Addr()
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	var out []entry
	for k, a := range dblocks {
		if len(out) >= limit {
			break
		}
		var init []byte
		if npages > 0 {
			stride := (npages + 7) / 8
			init = bitmap[k*stride : (k+1)*stride]
		}
		es, err := ea.dataBlock(a, info.nelems, init)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	return out, nil
}

// dataBlock reads nelems elements. init is the page bitmap of a paged
// block; blocks referenced by the index block have all pages written.
func (ea *extArray) dataBlock(addr uint64, nelems uint64, init []byte) ([]entry, error) {
	s := ea.src.Sizes()
	n := int(nelems)
	if s.IsUndefined(addr) {
		return undefinedEntries(n), nil
	}
	prefix := 10 + s.Offset + ea.offsetLen
	npages := ea.pages(nelems)
	if npages == 0 {
		d, err := readBlock(ea.src, addr, prefix+n*ea.codec.size, "EADB")
		if err != nil {
			return nil, err
		}
		d.Skip(1 + s.Offset + ea.offsetLen)
		out := ea.codec.decodeN(d, n)
		return out, d.Err()
	}

	if _, err := readBlock(ea.src, addr, prefix, "EADB"); err != nil {
		return nil, err
	}
	pageLen := 1 << ea.pageBits
	pageSize := pageLen*ea.codec.size + 4
	out := make([]entry, 0, n)
	for p := 0; p < npages; p++ {
		if init != nil && !bitSet(init, p) {
			out = append(out, undefinedEntries(pageLen)...)
			continue
		}
		b, err := ea.src.ReadAt(addr+uint64(prefix+p*pageSize), pageSize)
		if err != nil {
			return nil, fmt.Errorf("extensible array page %d: %w", p, err)
		}
		if err := binary.VerifyLookup3(b); err != nil {
			return nil, fmt.Errorf("extensible array page %d: %w", p, err)
		}
		out = append(out, ea.codec.decodeN(binary.NewDecoder(b, s), pageLen)...)
	}
	return out, nil
}
