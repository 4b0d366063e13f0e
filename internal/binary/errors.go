package binary

import "errors"

var (
	// ErrTruncated indicates a structure extends past the available bytes.
	ErrTruncated = errors.New("hdf5: truncated structure")
	// ErrSignature indicates a structure did not start with its magic bytes.
	ErrSignature = errors.New("hdf5: signature mismatch")
	// ErrChecksum indicates a stored checksum did not match the data.
	ErrChecksum = errors.New("hdf5: checksum mismatch")
	// ErrUnsupported indicates a valid structure this package cannot handle.
	ErrUnsupported = errors.New("hdf5: unsupported feature")
	// ErrInvalidSize indicates an address or length width other than 2, 4 or 8.
	ErrInvalidSize = errors.New("hdf5: invalid offset or length size")
)
