package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Attribute is an attribute of a group or dataset.
type Attribute struct {
	msg  *message.Attribute
	heap dtype.Heap
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the value, nil for scalars.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dims
}

// NumElements returns the number of elements.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar reports whether the value has a scalar dataspace.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// Datatype returns the element type.
func (a *Attribute) Datatype() *message.Datatype {
	return a.msg.Datatype
}

// IsString reports whether the elements are fixed or variable-length strings.
func (a *Attribute) IsString() bool {
	return a.msg.Datatype != nil && a.msg.Datatype.IsString()
}

// RawData returns the stored element bytes. Variable-length elements are
// heap references into the file the attribute was read from.
func (a *Attribute) RawData() []byte {
	return a.msg.Data
}

// Read decodes the value into dest, a pointer to a slice or a scalar.
func (a *Attribute) Read(dest any) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %q: no datatype", a.msg.Name)
	}
	if err := dtype.Convert(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.heap); err != nil {
		return fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	return nil
}

// ReadFloat64 reads the value as float64 values.
func (a *Attribute) ReadFloat64() ([]float64, error) {
	var out []float64
	err := a.Read(&out)
	return out, err
}

// ReadInt64 reads the value as int64 values.
func (a *Attribute) ReadInt64() ([]int64, error) {
	var out []int64
	err := a.Read(&out)
	return out, err
}

// ReadString reads the value as strings.
func (a *Attribute) ReadString() ([]string, error) {
	var out []string
	err := a.Read(&out)
	return out, err
}

// Value decodes the attribute into its natural Go type: a scalar for a
// scalar dataspace, a slice otherwise.
func (a *Attribute) Value() (any, error) {
	vals, err := dtype.Values(a.msg.Datatype, a.msg.Data, a.NumElements(), a.heap)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	if a.IsScalar() {
		return reflect.ValueOf(vals).Index(0).Interface(), nil
	}
	return vals, nil
}
