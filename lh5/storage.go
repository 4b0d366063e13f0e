package lh5

import (
	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/container"
)

// Compression selects how datasets are stored when a converted file is
// written.
type Compression string

const (
	// CompressionNone stores datasets contiguously.
	CompressionNone Compression = "none"
	// CompressionDeflate stores datasets in shuffled, zlib compressed chunks.
	CompressionDeflate Compression = "deflate"
	// CompressionZstd stores datasets in shuffled, zstd compressed chunks.
	CompressionZstd Compression = "zstd"
)

// ChunkSize is the number of rows of a compressed dataset chunk.
const ChunkSize = 1 << 16

const (
	deflateLevel = 4
	zstdLevel    = 3
)

// storage returns the dataset layout of c, nil for contiguous storage.
func (c Compression) storage() (container.StorageFunc, error) {
	var codec hdf5.DatasetOption
	switch c {
	case "", CompressionNone:
		return nil, nil
	case CompressionDeflate:
		codec = hdf5.WithDeflate(deflateLevel)
	case CompressionZstd:
		codec = hdf5.WithZstd(zstdLevel)
	default:
		return nil, ErrUnknownCompression.New(string(c))
	}

	return func(_ string, ds *container.Dataset) []hdf5.DatasetOption {
		return []hdf5.DatasetOption{hdf5.WithChunks(chunkShape(ds.Dims)...), hdf5.WithShuffle(), codec}
	}, nil
}

// chunkShape splits the first dimension into ChunkSize rows and keeps the
// others whole.
func chunkShape(dims []uint64) []uint64 {
	chunk := append([]uint64(nil), dims...)
	chunk[0] = min(chunk[0], ChunkSize)
	return chunk
}
