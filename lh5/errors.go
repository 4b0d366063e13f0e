package lh5

import (
	errors "gopkg.in/src-d/go-errors.v1"
)

// Structural errors. They fail the table they occur in; sibling tables are
// still converted.
var (
	// ErrMissingMetadata is returned when names, forms or columns is missing.
	ErrMissingMetadata = errors.NewKind("missing names, forms or columns dataset")
	// ErrAlreadyConverted is returned when LGDO attributes already exist.
	ErrAlreadyConverted = errors.NewKind("to-be-written LGDO attributes already exist")
	// ErrInvalidColumns is returned when columns is not a scalar uint32.
	ErrInvalidColumns = errors.NewKind("invalid columns dataset")
	// ErrInvalidCatalog is returned by ReadCatalog for malformed catalogs.
	ErrInvalidCatalog = errors.NewKind("invalid %s dataset")
	// ErrCatalogMismatch is returned when names and forms differ in length.
	ErrCatalogMismatch = errors.NewKind("mismatch in forms and names count: %d vs %d")
	// ErrTemporaryName is returned when a member already uses the temporary suffix.
	ErrTemporaryName = errors.NewKind("already containing temporary column %s")
	// ErrUnknownColumn is returned for an empty column missing from names.
	ErrUnknownColumn = errors.NewKind("column %s is not listed in names")
	// ErrNameCollision is returned when two columns map to the same LGDO name.
	ErrNameCollision = errors.NewKind("column %s collides with an existing member")
	// ErrColumnCount is returned when the number of converted columns is off.
	ErrColumnCount = errors.NewKind("column count mismatch: converted %d, declared %d, catalog %d")
	// ErrNotLGDO is returned when a table has no table{...} datatype.
	ErrNotLGDO = errors.NewKind("not an LGDO table")
	// ErrNotColumn is returned when a table member is not a dataset.
	ErrNotColumn = errors.NewKind("member %s is not a column dataset")
	// ErrNotSimple is returned when a column is not one-dimensional.
	ErrNotSimple = errors.NewKind("no simple dataspace for column %s")
	// ErrEntriesMismatch is returned when columns differ in length.
	ErrEntriesMismatch = errors.NewKind("mismatch for entry count for column %s: %d vs %d")
)

// Logic errors. The file holds a type the producer cannot write; the whole
// file fails.
var (
	// ErrUnknownForm is returned for an unknown form type tag.
	ErrUnknownForm = errors.NewKind("not implemented form type %q, LGDO will be invalid")
	// ErrUnknownClass is returned for a datatype class without a mapping.
	ErrUnknownClass = errors.NewKind("not implemented HDF5 type class %d, LGDO will be invalid")
)

// Precondition errors. They abort the file and are reported as fatal.
var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.NewKind("%s does not exist")
	// ErrNotRawFile is returned when the file lacks a valid producer header.
	ErrNotRawFile = errors.NewKind("not a remage HDF5 output file or already converted (%s)")
	// ErrMissingGroup is returned when the table group does not exist.
	ErrMissingGroup = errors.NewKind("group %s is missing")
	// ErrAuxUnsupported is returned by the reverse conversion for auxiliary tables.
	ErrAuxUnsupported = errors.NewKind("handling of auxiliary ntuples is not implemented yet")
	// ErrUnknownCompression is returned for an unknown Options.Compression.
	ErrUnknownCompression = errors.NewKind("unknown compression %q")
)

// TableError is the failure of a single table.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return "table " + e.Table + ": " + e.Err.Error()
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func isLogicError(err error) bool {
	return ErrUnknownForm.Is(err) || ErrUnknownClass.Is(err)
}
