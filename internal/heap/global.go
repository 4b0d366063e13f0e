package heap

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/binary"
)

const collectionSignature = "GCOL"

// Ref is the on-disk element of a variable-length dataset: the element
// length and the global heap object holding it.
type Ref struct {
	Length     uint32
	Collection uint64
	Index      uint32
}

// IsNull reports whether the reference points at no object, as it does for
// empty strings.
func (r Ref) IsNull() bool { return r.Collection == 0 || r.Collection == binary.Undefined }

// DecodeRef reads a reference of s.VarLenRefSize() bytes.
func DecodeRef(b []byte, s binary.Sizes) (Ref, error) {
	d := binary.NewDecoder(b, s)
	r := Ref{Length: d.U32(), Collection: d.Addr(), Index: d.U32()}
	return r, d.Err()
}

// Encode appends the reference.
func (r Ref) Encode(e *binary.Encoder) {
	e.U32(r.Length)
	e.Addr(r.Collection)
	e.U32(r.Index)
}

// Collection is a decoded global heap collection.
type Collection struct {
	Address uint64
	objects map[uint32][]byte
}

// ReadCollection reads the collection at addr.
func ReadCollection(src *binary.Source, addr uint64) (*Collection, error) {
	s := src.Sizes()
	hdr := 8 + s.Length
	d, err := src.Decoder(addr, hdr)
	if err != nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w", addr, err)
	}
	d.Signature(collectionSignature)
	if v := d.U8(); v != 1 && d.Err() == nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w: version %d", addr, binary.ErrUnsupported, v)
	}
	d.Skip(3)
	size := int(d.Length())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w", addr, err)
	}
	if size < hdr {
		return nil, fmt.Errorf("global heap at 0x%x: %w: collection size %d", addr, binary.ErrTruncated, size)
	}

	if d, err = src.Decoder(addr, size); err != nil {
		return nil, fmt.Errorf("global heap at 0x%x: %w", addr, err)
	}
	d.Skip(hdr)
	c := &Collection{Address: addr, objects: make(map[uint32][]byte)}
	for d.Remaining() >= 8+s.Length {
		index := d.U16()
		d.Skip(6)
		n := d.Length()
		if index == 0 {
			// Free space runs to the end of the collection.
			break
		}
		data := d.Bytes(int(n))
		d.Skip(binary.AlignUp(int(n), 8) - int(n))
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("global heap at 0x%x object %d: %w", addr, index, err)
		}
		c.objects[uint32(index)] = data
	}
	return c, nil
}

// Object returns the object with the given index.
func (c *Collection) Object(index uint32) ([]byte, error) {
	b, ok := c.objects[index]
	if !ok {
		return nil, fmt.Errorf("global heap at 0x%x: no object %d", c.Address, index)
	}
	return b, nil
}

// Len returns the number of objects in the collection.
func (c *Collection) Len() int { return len(c.objects) }

// Reader resolves references, caching each collection it reads.
type Reader struct {
	src   *binary.Source
	cache map[uint64]*Collection
}

func NewReader(src *binary.Source) *Reader {
	return &Reader{src: src, cache: make(map[uint64]*Collection)}
}

// Read returns the object a reference points at. Null references read as
// empty.
func (r *Reader) Read(ref Ref) ([]byte, error) {
	if ref.IsNull() || ref.Length == 0 {
		return nil, nil
	}
	c, ok := r.cache[ref.Collection]
	if !ok {
		var err error
		if c, err = ReadCollection(r.src, ref.Collection); err != nil {
			return nil, err
		}
		r.cache[ref.Collection] = c
	}
	return c.Object(ref.Index)
}
