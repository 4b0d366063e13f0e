package hdf5

import "github.com/robert-malhotra/go-lh5/internal/filter"

// FileOption configures Create.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{offsetSize: 8, lengthSize: 8}
}

// WithOffsetSize sets the width of file addresses: 2, 4 or 8 bytes.
func WithOffsetSize(size int) FileOption {
	return func(o *fileOptions) {
		o.offsetSize = size
	}
}

// WithLengthSize sets the width of lengths: 2, 4 or 8 bytes.
func WithLengthSize(size int) FileOption {
	return func(o *fileOptions) {
		o.lengthSize = size
	}
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type attrDef struct {
	name  string
	value any
}

// filterFunc builds a filter for elements of the given size.
type filterFunc func(elemSize uint32) filter.Filter

type datasetOptions struct {
	chunks     []uint64
	filters    []filterFunc
	attributes []attrDef
}

func defaultDatasetOptions() *datasetOptions {
	return &datasetOptions{}
}

// WithChunks stores the dataset in chunks of the given shape, one dimension
// per dataset dimension.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithDeflate compresses chunks with zlib at level 0 to 9.
func WithDeflate(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, func(uint32) filter.Filter { return &filter.Deflate{Level: level} })
	}
}

// WithShuffle regroups element bytes before later filters run.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, func(size uint32) filter.Filter { return &filter.Shuffle{Size: int(size)} })
	}
}

// WithFletcher32 appends a checksum to every chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, func(uint32) filter.Filter { return filter.Fletcher32{} })
	}
}

// WithZstd compresses chunks with zstd. The filter is marked optional, so a
// chunk it fails on is stored uncompressed.
func WithZstd(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, func(uint32) filter.Filter { return &filter.Zstd{Level: level} })
	}
}

// WithAttribute adds an attribute with a value inferred from its Go type.
// It can be given more than once.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}
