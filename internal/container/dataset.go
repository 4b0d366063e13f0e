package container

import (
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Dataset is an in-memory dataset. Variable-length string datasets keep
// their values in Strings; every other type keeps the raw element bytes
// in Data.
type Dataset struct {
	Attributes

	Type    *message.Datatype
	Dims    []uint64 // nil for a scalar dataspace
	Data    []byte
	Strings []string
}

// IsScalar reports whether the dataset has a scalar dataspace.
func (d *Dataset) IsScalar() bool {
	return d.Dims == nil
}

// IsSimple1D reports whether the dataset has a one-dimensional simple
// dataspace.
func (d *Dataset) IsSimple1D() bool {
	return len(d.Dims) == 1
}

// NumElements returns the number of elements.
func (d *Dataset) NumElements() uint64 {
	return numElements(d.Dims)
}

// Class returns the datatype class.
func (d *Dataset) Class() message.DatatypeClass {
	return d.Type.Class
}

// IsVarLenString reports whether the dataset holds variable-length strings.
func (d *Dataset) IsVarLenString() bool {
	return isVarLenString(d.Type)
}

// VarLenString returns a UTF-8 variable-length string datatype.
func VarLenString() *message.Datatype {
	return message.NewVarLenStringDatatype(message.CharsetUTF8)
}

func isVarLenString(dt *message.Datatype) bool {
	return dt != nil && dt.IsVarLen() && dt.IsVarLenString
}

func numElements(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
