package hdf5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-lh5/internal/alloc"
	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/object"
	"github.com/robert-malhotra/go-lh5/internal/superblock"
)

// File is an open HDF5 file, either read-only from Open or being built by
// Create.
type File struct {
	path       string
	file       *os.File
	superblock *superblock.Superblock
	sizes      binary.Sizes
	root       *Group
	closed     bool

	// Reading.
	src     *binary.Source
	globals *heap.Reader

	// Writing.
	writable bool
	space    *alloc.Space
	vlen     *heap.Writer
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	src := binary.NewSource(osFile, sb.Sizes, sb.BaseAddress)
	f := &File{
		path:       path,
		file:       osFile,
		superblock: sb,
		sizes:      sb.Sizes,
		src:        src,
		globals:    heap.NewReader(src),
	}

	root, err := f.openGroupAt(sb.RootAddress, "/")
	if err != nil {
		osFile.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	f.root = root
	return f, nil
}

// Close closes the file. A file from Create is completed first: pending
// heap collections, object headers and the superblock are written.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.writable {
		if err := f.finish(); err != nil {
			f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// OpenGroup opens a group by path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

func (f *File) openGroupAt(addr uint64, path string) (*Group, error) {
	h, err := object.Read(f.src, addr)
	if err != nil {
		return nil, err
	}
	return &Group{file: f, path: path, header: h, addr: addr}, nil
}

func (f *File) openDatasetAt(addr uint64, path string) (*Dataset, error) {
	h, err := object.Read(f.src, addr)
	if err != nil {
		return nil, err
	}
	return newDataset(f, path, h)
}

// resolve follows an absolute path from the root. visited holds the soft
// link targets already taken and stops cycles.
func (f *File) resolve(absPath string, visited map[string]bool) (*linkResolution, error) {
	parts := SplitPath(absPath)
	if len(parts) == 0 {
		return &linkResolution{address: f.superblock.RootAddress}, nil
	}

	cur := f.root
	for i, name := range parts {
		res, err := cur.findChild(name, visited)
		if err != nil {
			return nil, fmt.Errorf("resolving %q in %s: %w", name, absPath, err)
		}
		if i == len(parts)-1 {
			return res, nil
		}
		if res.isDataset {
			return nil, fmt.Errorf("%q in %s: %w", name, absPath, ErrNotGroup)
		}
		if cur, err = f.openGroupAt(res.address, JoinPath(cur.path, name)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%q: %w", absPath, ErrInvalidPath)
}
