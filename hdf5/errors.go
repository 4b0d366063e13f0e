// Package hdf5 reads and writes HDF5 files with plain Go.
//
// Files are opened read-only with Open or built in memory with Create and
// written out by Close. Groups, datasets, attributes and soft links are
// supported; dense link and attribute storage are not.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/superblock"
)

var (
	ErrNotHDF5     = superblock.ErrNotHDF5
	ErrNotFound    = errors.New("object not found")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = binary.ErrUnsupported
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
	ErrReadOnly    = errors.New("file is not writable")
	ErrExists      = errors.New("name already exists")
)

// MaxLinkDepth bounds the soft links followed while resolving one path.
const MaxLinkDepth = 100
