// Package binary decodes and encodes the fixed-layout structures of an HDF5
// file.
//
// File metadata is always little-endian. Addresses and lengths are stored in
// as many bytes as the superblock declares, so every Decoder and Encoder
// carries the file's Sizes.
//
// A Decoder walks a byte slice and remembers the first error it hits; callers
// read a whole structure and check Err once at the end. An Encoder appends to
// a growing buffer that is written to the file in one piece.
package binary
