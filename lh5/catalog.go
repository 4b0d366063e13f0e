package lh5

import (
	"strings"

	"github.com/robert-malhotra/go-lh5/internal/container"
)

// ReadCatalog decodes a NUL separated catalog dataset such as names or
// forms. The producer stores the fields back to back, each followed by a
// NUL, and pads the buffer with one more NUL, so the raw bytes must end in
// two NULs. The stored bytes are used as they are: a string read would stop
// at the first NUL.
//
// It returns the buffer without its two final NULs and the fields.
func ReadCatalog(g *container.Group, name string) (string, []string, error) {
	ds, err := g.Dataset(name)
	if err != nil {
		return "", nil, ErrInvalidCatalog.Wrap(err, name)
	}
	if ds.Type.IsVarLen() || !ds.Type.IsString() {
		return "", nil, ErrInvalidCatalog.New(name)
	}

	buf := ds.Data
	n := len(buf)
	if n < 2 || buf[n-1] != 0 || buf[n-2] != 0 {
		return "", nil, ErrInvalidCatalog.New(name)
	}

	s := string(buf[:n-2])
	return s, SplitCatalog(s), nil
}

// SplitCatalog splits a stripped catalog buffer on NUL bytes. A final empty
// field, left by the terminator of the last entry, is dropped.
func SplitCatalog(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, "\x00")
	if fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// JoinCatalog packs fields into a catalog buffer, each field followed by a
// NUL. Stored with one more NUL it reads back with ReadCatalog.
func JoinCatalog(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f)
		b.WriteByte(0)
	}
	return b.String()
}
