// Package filter implements the chunk filters of HDF5 datasets.
//
// Filters run in pipeline order when a chunk is written and in reverse order
// when it is read. A chunk's filter mask marks the stages that were skipped
// for that chunk:
//
//	p, err := filter.NewPipeline(msg)
//	raw, err := p.Decode(stored, mask)
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-lh5/internal/message"
)

var (
	// ErrUnsupported is returned for a required filter with no implementation.
	ErrUnsupported = errors.New("filter: unsupported filter")
	// ErrChecksum is returned when a Fletcher-32 checksum does not match.
	ErrChecksum = errors.New("filter: checksum mismatch")
)

// Filter transforms a chunk in one direction or the other.
type Filter interface {
	ID() uint16
	Encode(b []byte) ([]byte, error)
	Decode(b []byte) ([]byte, error)
}

type constructor func(clientData []uint32) Filter

var registry = map[uint16]constructor{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func([]uint32) Filter { return Fletcher32{} },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
	message.FilterZstd:        "zstd",
}

// Name returns the conventional name of a filter identifier.
func Name(id uint16) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter %d", id)
}

// Supported reports whether id has an implementation.
func Supported(id uint16) bool {
	_, ok := registry[id]
	return ok
}

// New returns the filter described by f. A nil filter and nil error mean
// the filter is optional and unavailable, so the stage is skipped.
func New(f message.Filter) (Filter, error) {
	c, ok := registry[f.ID]
	if !ok {
		if f.IsOptional() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, Name(f.ID))
	}
	return c(f.ClientData), nil
}
