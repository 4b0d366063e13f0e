package container

import (
	"fmt"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Attr is an in-memory attribute, stored like a Dataset.
type Attr struct {
	Name    string
	Type    *message.Datatype
	Dims    []uint64 // nil for a scalar dataspace
	Data    []byte
	Strings []string
}

// IsVarLenString reports whether the attribute holds variable-length strings.
func (a *Attr) IsVarLenString() bool {
	return isVarLenString(a.Type)
}

// Attributes is the attribute list shared by groups and datasets.
type Attributes struct {
	list []*Attr
}

// AttrNames returns the attribute names in order.
func (as *Attributes) AttrNames() []string {
	names := make([]string, len(as.list))
	for i, a := range as.list {
		names[i] = a.Name
	}
	return names
}

// HasAttr reports whether an attribute exists.
func (as *Attributes) HasAttr(name string) bool {
	return as.index(name) >= 0
}

// Attr returns an attribute, or nil.
func (as *Attributes) Attr(name string) *Attr {
	if i := as.index(name); i >= 0 {
		return as.list[i]
	}
	return nil
}

// SetAttr adds an attribute. It fails if one with the same name exists.
func (as *Attributes) SetAttr(a *Attr) error {
	if as.HasAttr(a.Name) {
		return fmt.Errorf("attribute %q: %w", a.Name, hdf5.ErrExists)
	}
	as.list = append(as.list, a)
	return nil
}

// SetStringAttr creates a scalar variable-length string attribute. It never
// overwrites: an existing attribute of that name is an error.
func (as *Attributes) SetStringAttr(name, value string) error {
	return as.SetAttr(&Attr{Name: name, Type: VarLenString(), Strings: []string{value}})
}

// StringAttr returns the value of a scalar string attribute, fixed or
// variable length. ok is false if the attribute is missing or not a string.
func (as *Attributes) StringAttr(name string) (value string, ok bool) {
	a := as.Attr(name)
	if a == nil || a.Type == nil || !a.Type.IsString() {
		return "", false
	}

	if a.IsVarLenString() {
		if len(a.Strings) == 0 {
			return "", false
		}
		return a.Strings[0], true
	}

	size := int(a.Type.Size)
	if size == 0 || len(a.Data) < size {
		return "", false
	}
	return dtype.FixedString(a.Data[:size], a.Type.StringPadding), true
}

// Int32Attr returns the value of a single-element 32-bit signed
// little-endian integer attribute. ok is false for any other attribute type.
func (as *Attributes) Int32Attr(name string) (value int32, ok bool) {
	a := as.Attr(name)
	if a == nil || a.Type == nil || numElements(a.Dims) != 1 {
		return 0, false
	}
	if a.Type.Class != message.ClassFixedPoint || !a.Type.Signed || a.Type.Size != 4 || a.Type.ByteOrder != message.OrderLE {
		return 0, false
	}
	v, err := dtype.ReadScalar[int32](a.Type, a.Data)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RemoveAttr deletes an attribute. Removing a missing attribute is a no-op.
func (as *Attributes) RemoveAttr(name string) {
	if i := as.index(name); i >= 0 {
		as.list = append(as.list[:i], as.list[i+1:]...)
	}
}

func (as *Attributes) index(name string) int {
	for i, a := range as.list {
		if a.Name == name {
			return i
		}
	}
	return -1
}
