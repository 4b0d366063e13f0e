package heap

import (
	"github.com/robert-malhotra/go-lh5/internal/binary"
)

const (
	// MinCollectionSize is the smallest collection HDF5 creates.
	MinCollectionSize = 4096
	// maxObjects is the number of indices a collection can hand out.
	maxObjects = 0xffff
)

type collection struct {
	addr    uint64
	size    int
	used    int
	objects [][]byte
}

// Writer packs variable-length elements into global heap collections.
// Collections are placed with alloc when opened and encoded by Flush.
type Writer struct {
	sizes       binary.Sizes
	alloc       func(size uint64) uint64
	collections []*collection
}

// NewWriter returns a Writer reserving file space through alloc.
func NewWriter(s binary.Sizes, alloc func(size uint64) uint64) *Writer {
	return &Writer{sizes: s, alloc: alloc}
}

func (w *Writer) headerSize() int { return 8 + w.sizes.Length }

func (w *Writer) objectSize(n int) int { return 8 + w.sizes.Length + binary.AlignUp(n, 8) }

// Store adds objs and returns a reference to each. Empty objects get a null
// reference. A batch is kept in one collection when it fits.
func (w *Writer) Store(objs [][]byte) []Ref {
	refs := make([]Ref, len(objs))
	need, count := 0, 0
	for _, o := range objs {
		if len(o) > 0 {
			need += w.objectSize(len(o))
			count++
		}
	}
	if count == 0 {
		return refs
	}

	cur := w.current()
	if cur == nil || cur.used+need > cur.size || len(cur.objects)+count > maxObjects {
		cur = w.open(need)
	}
	for i, o := range objs {
		if len(o) == 0 {
			continue
		}
		n := w.objectSize(len(o))
		if cur.used+n > cur.size || len(cur.objects) == maxObjects {
			cur = w.open(need)
		}
		cur.objects = append(cur.objects, o)
		cur.used += n
		need -= n
		refs[i] = Ref{Length: uint32(len(o)), Collection: cur.addr, Index: uint32(len(cur.objects))}
	}
	return refs
}

func (w *Writer) current() *collection {
	if len(w.collections) == 0 {
		return nil
	}
	return w.collections[len(w.collections)-1]
}

func (w *Writer) open(need int) *collection {
	size := binary.AlignUp(w.headerSize()+need, 8)
	if size < MinCollectionSize {
		size = MinCollectionSize
	}
	c := &collection{size: size, used: w.headerSize()}
	c.addr = w.alloc(uint64(size))
	w.collections = append(w.collections, c)
	return c
}

// Len returns the number of collections opened so far.
func (w *Writer) Len() int { return len(w.collections) }

// Flush encodes every collection and hands it to write.
func (w *Writer) Flush(write func(addr uint64, b []byte) error) error {
	for _, c := range w.collections {
		if err := write(c.addr, w.encode(c)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) encode(c *collection) []byte {
	e := binary.NewEncoder(w.sizes)
	e.Raw([]byte(collectionSignature))
	e.U8(1)
	e.Zeros(3)
	e.Length(uint64(c.size))
	for i, o := range c.objects {
		e.U16(uint16(i + 1))
		// Reference count, reserved.
		e.U16(0)
		e.Zeros(4)
		e.Length(uint64(len(o)))
		e.Raw(o)
		e.Zeros(binary.AlignUp(len(o), 8) - len(o))
	}
	// The free space object includes its own header; a remainder too small
	// for a header is left as zeros.
	if free := c.size - e.Len(); free >= 8+w.sizes.Length {
		e.U16(0)
		e.Zeros(6)
		e.Length(uint64(free))
	}
	e.Zeros(c.size - e.Len())
	return e.Bytes()
}
