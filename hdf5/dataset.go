package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/filter"
	"github.com/robert-malhotra/go-lh5/internal/layout"
	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/robert-malhotra/go-lh5/internal/object"
)

// Dataset is an HDF5 dataset. Datasets of a file from Create can only have
// attributes added until the file is closed.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout

	dataLayout *message.DataLayout
	pipeline   *message.FilterPipeline
	attrs      []*pendingAttr
}

func newDataset(f *File, path string, h *object.Header) (*Dataset, error) {
	ds := &Dataset{file: f, path: path, header: h, dataspace: h.Dataspace(), datatype: h.Datatype()}
	l := h.DataLayout()
	switch {
	case ds.dataspace == nil:
		return nil, fmt.Errorf("dataset %s: no dataspace", path)
	case ds.datatype == nil:
		return nil, fmt.Errorf("dataset %s: no datatype", path)
	case l == nil:
		return nil, fmt.Errorf("dataset %s: no layout", path)
	}

	var err error
	if ds.layout, err = layout.New(l, ds.dataspace, ds.datatype, h.FilterPipeline(), f.src); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Name returns the dataset name (last component of path).
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the full path to this dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dimensions of the dataset, nil for scalars.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dims
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.dataspace.Rank()
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.dataspace.NumElements()
}

// IsScalar returns true if the dataset is a scalar (single value).
func (d *Dataset) IsScalar() bool {
	return d.dataspace.IsScalar()
}

// DtypeSize returns the size of each element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// DtypeClass returns the datatype class.
func (d *Dataset) DtypeClass() message.DatatypeClass {
	return d.datatype.Class
}

// Datatype returns the parsed datatype message.
func (d *Dataset) Datatype() *message.Datatype {
	return d.datatype
}

// GoType returns the Go type that corresponds to this dataset's datatype.
func (d *Dataset) GoType() (reflect.Type, error) {
	return dtype.GoType(d.datatype)
}

// Read decodes every element into dest, a pointer to a slice. Numeric
// elements convert to any Go number type that keeps their kind.
func (d *Dataset) Read(dest any) error {
	if d.layout == nil {
		return fmt.Errorf("reading %s: %w", d.path, ErrUnsupported)
	}

	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	if err := dtype.Convert(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.globals); err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return nil
}

// ReadRaw returns the unfiltered element bytes in row-major order.
// Variable-length elements are heap references.
func (d *Dataset) ReadRaw() ([]byte, error) {
	if d.layout == nil {
		return nil, fmt.Errorf("reading %s: %w", d.path, ErrUnsupported)
	}
	return d.layout.Read()
}

// ReadFloat64 reads the dataset as float64 values.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	var result []float64
	err := d.Read(&result)
	return result, err
}

// ReadFloat32 reads the dataset as float32 values.
func (d *Dataset) ReadFloat32() ([]float32, error) {
	var result []float32
	err := d.Read(&result)
	return result, err
}

// ReadInt64 reads the dataset as int64 values.
func (d *Dataset) ReadInt64() ([]int64, error) {
	var result []int64
	err := d.Read(&result)
	return result, err
}

// ReadInt32 reads the dataset as int32 values.
func (d *Dataset) ReadInt32() ([]int32, error) {
	var result []int32
	err := d.Read(&result)
	return result, err
}

// ReadUint32 reads the dataset as uint32 values.
func (d *Dataset) ReadUint32() ([]uint32, error) {
	var result []uint32
	err := d.Read(&result)
	return result, err
}

// ReadString reads the dataset as string values.
func (d *Dataset) ReadString() ([]string, error) {
	var result []string
	err := d.Read(&result)
	return result, err
}

// Attrs returns the attribute names for this dataset.
func (d *Dataset) Attrs() []string {
	return attrNames(d.header)
}

// Attr returns an attribute by name, or nil if not found.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(d.file, d.header, name)
}

// HasAttr returns true if the dataset has an attribute with the given name.
func (d *Dataset) HasAttr(name string) bool {
	return d.Attr(name) != nil
}

// StorageClass returns how the elements are stored.
func (d *Dataset) StorageClass() message.LayoutClass {
	if d.layout != nil {
		return d.layout.Class()
	}
	return d.dataLayout.Class
}

// Filters returns the names of the filters chunks pass through, in
// pipeline order.
func (d *Dataset) Filters() []string {
	fp := d.pipeline
	if d.header != nil {
		fp = d.header.FilterPipeline()
	}
	if fp == nil {
		return nil
	}
	names := make([]string, len(fp.Filters))
	for i, f := range fp.Filters {
		names[i] = filter.Name(f.ID)
	}
	return names
}
