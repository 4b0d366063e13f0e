package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-lh5/internal/alloc"
	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/robert-malhotra/go-lh5/internal/object"
	"github.com/robert-malhotra/go-lh5/internal/superblock"
)

// Create creates a file at path, truncating any existing one. The file gets
// a version 3 superblock and version 2 object headers.
//
// Element data and global heap space are placed as datasets are created.
// Object headers are written by Close from the leaves up to the root group,
// followed by the superblock, so only a closed file is readable.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}
	sizes := binary.Sizes{Offset: options.offsetSize, Length: options.lengthSize}
	if err := sizes.Validate(); err != nil {
		return nil, err
	}

	osFile, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	space := alloc.New(osFile, uint64(superblock.EncodedSize(sizes)))
	f := &File{
		path:       path,
		file:       osFile,
		superblock: superblock.New(sizes),
		sizes:      sizes,
		writable:   true,
		space:      space,
		vlen:       heap.NewWriter(sizes, space.Alloc),
	}
	f.root = &Group{file: f, path: "/"}
	return f, nil
}

// IsWritable reports whether the file came from Create.
func (f *File) IsWritable() bool {
	return f.writable
}

// Stats returns the space allocation statistics of a file from Create.
func (f *File) Stats() alloc.Stats {
	if f.space == nil {
		return alloc.Stats{}
	}
	return f.space.Stats()
}

func (f *File) finish() error {
	rootAddr, err := f.root.finalize()
	if err != nil {
		return err
	}
	if err := f.vlen.Flush(f.space.WriteAt); err != nil {
		return fmt.Errorf("writing global heap: %w", err)
	}

	f.superblock.RootAddress = rootAddr
	f.superblock.EOFAddress = f.space.EOF()
	if err := f.space.WriteHeader(0, f.superblock.Encode()); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

// storeStrings puts values in the global heap and returns their encoded
// references. Empty strings get null references.
func (f *File) storeStrings(values []string) []byte {
	objs := make([][]byte, len(values))
	for i, v := range values {
		objs[i] = []byte(v)
	}
	return dtype.EncodeRefs(f.vlen.Store(objs), f.sizes)
}

// writeContiguous stores data in one block. Empty data gets no storage.
func (f *File) writeContiguous(data []byte) (*message.DataLayout, error) {
	if len(data) == 0 {
		return message.NewContiguousLayout(binary.Undefined, 0), nil
	}
	addr, err := f.space.Append(data)
	if err != nil {
		return nil, fmt.Errorf("writing data: %w", err)
	}
	return message.NewContiguousLayout(addr, uint64(len(data))), nil
}

func (f *File) writeHeader(msgs []message.Encodable, minChunk int) (uint64, error) {
	return f.space.Append(object.Encode(msgs, f.sizes, minChunk))
}
