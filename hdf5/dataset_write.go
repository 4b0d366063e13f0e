package hdf5

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/filter"
	"github.com/robert-malhotra/go-lh5/internal/layout"
	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/robert-malhotra/go-lh5/internal/object"
)

// pendingAttr is an attribute waiting to be written with its object header.
type pendingAttr struct {
	msg *message.Attribute
}

// CreateDataset creates a new dataset holding data. The datatype and
// dimensions are inferred from the Go value: a scalar gets a scalar
// dataspace, slices (nested for more dimensions) get a simple one.
// A []string becomes a variable-length string dataset.
func (g *Group) CreateDataset(name string, data any, opts ...DatasetOption) (*Dataset, error) {
	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("dataset %q: nil data", name)
	}

	dims, elemType := inferDimensionsAndType(val)
	if elemType.Kind() == reflect.String {
		values, err := flattenStrings(val)
		if err != nil {
			return nil, err
		}
		return g.CreateStringDataset(name, dims, values, opts...)
	}

	dt, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("creating datatype: %w", err)
	}

	raw, err := dtype.Encode(dt, data)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}

	return g.CreateDatasetRaw(name, dt, dims, raw, opts...)
}

// CreateDatasetRaw creates a dataset from an explicit datatype, dimensions
// (nil for a scalar) and the encoded element bytes.
func (g *Group) CreateDatasetRaw(name string, dt *message.Datatype, dims []uint64, data []byte, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, fmt.Errorf("dataset %q: nil datatype", name)
	}
	if dt.IsVarLen() {
		return nil, fmt.Errorf("dataset %q: variable-length data must use CreateStringDataset: %w", name, ErrUnsupported)
	}
	if want := dtype.DataSize(dt, numElements(dims)); uint64(len(data)) != want {
		return nil, fmt.Errorf("dataset %q: data size mismatch: expected %d, got %d", name, want, len(data))
	}
	return g.addDataset(name, dt, dims, data, opts)
}

// CreateStringDataset creates a variable-length UTF-8 string dataset. The
// strings go to the global heap right away.
func (g *Group) CreateStringDataset(name string, dims []uint64, values []string, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}
	if uint64(len(values)) != numElements(dims) {
		return nil, fmt.Errorf("dataset %q: %d values for %d elements", name, len(values), numElements(dims))
	}
	return g.addDataset(name, dtype.VarLenString(g.file.sizes), dims, g.file.storeStrings(values), opts)
}

func (g *Group) addDataset(name string, dt *message.Datatype, dims []uint64, data []byte, opts []DatasetOption) (*Dataset, error) {
	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	ds := &Dataset{
		file:      g.file,
		path:      JoinPath(g.path, name),
		dataspace: newDataspace(dims),
		datatype:  dt,
	}

	var err error
	if options.chunks != nil || len(options.filters) > 0 {
		ds.dataLayout, ds.pipeline, err = g.file.writeChunked(data, dims, dt.Size, options)
	} else {
		ds.dataLayout, err = g.file.writeContiguous(data)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	if err := ds.applyOptionAttrs(options); err != nil {
		return nil, err
	}
	g.children = append(g.children, &member{name: name, dataset: ds})
	return ds, nil
}

// writeChunked stores data in chunks through the requested filters. Without
// an explicit chunk shape the whole dataset is one chunk.
func (f *File) writeChunked(data []byte, dims []uint64, elem uint32, options *datasetOptions) (*message.DataLayout, *message.FilterPipeline, error) {
	if dims == nil {
		return nil, nil, fmt.Errorf("chunked scalar dataset: %w", ErrUnsupported)
	}
	shape := options.chunks
	if shape == nil {
		shape = make([]uint64, len(dims))
		for i, d := range dims {
			shape[i] = max(d, 1)
		}
	}
	if len(shape) != len(dims) {
		return nil, nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(shape), len(dims))
	}
	chunk := make([]uint32, len(shape))
	for i, c := range shape {
		if c == 0 || c > math.MaxUint32 {
			return nil, nil, fmt.Errorf("chunk dimension %d is %d", i, c)
		}
		chunk[i] = uint32(c)
	}

	filters := make([]filter.Filter, len(options.filters))
	for i, build := range options.filters {
		filters[i] = build(elem)
	}
	var fp *message.FilterPipeline
	if len(filters) > 0 {
		fp = filter.Message(filters...)
	}
	p, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, nil, err
	}

	l, err := layout.WriteChunked(f.space, f.sizes, data, dims, chunk, elem, p)
	if err != nil {
		return nil, nil, err
	}
	return l, fp, nil
}

func (ds *Dataset) applyOptionAttrs(options *datasetOptions) error {
	for _, a := range options.attributes {
		if err := ds.SetAttr(a.name, a.value); err != nil {
			return fmt.Errorf("creating attribute %q: %w", a.name, err)
		}
	}
	return nil
}

// SetAttr adds an attribute with a value inferred from its Go type.
func (ds *Dataset) SetAttr(name string, value any) error {
	return ds.addAttr(name, func() (*pendingAttr, error) {
		return valueAttr(name, value)
	})
}

// SetStringAttr adds a scalar variable-length string attribute.
func (ds *Dataset) SetStringAttr(name, value string) error {
	return ds.SetStringsAttr(name, nil, []string{value})
}

// SetStringsAttr adds a variable-length string attribute with the given
// dimensions (nil for a scalar).
func (ds *Dataset) SetStringsAttr(name string, dims []uint64, values []string) error {
	return ds.addAttr(name, func() (*pendingAttr, error) {
		return ds.file.stringsAttr(name, dims, values)
	})
}

// SetAttrRaw adds an attribute from an explicit datatype and raw element bytes.
func (ds *Dataset) SetAttrRaw(name string, dt *message.Datatype, dims []uint64, data []byte) error {
	return ds.addAttr(name, func() (*pendingAttr, error) {
		return rawAttr(name, dt, dims, data)
	})
}

func (ds *Dataset) addAttr(name string, build func() (*pendingAttr, error)) error {
	if !ds.file.writable || ds.header != nil {
		return ErrReadOnly
	}
	attrs, err := appendAttr(ds.attrs, name, build)
	if err != nil {
		return err
	}
	ds.attrs = attrs
	return nil
}

// finalize writes the object header.
func (ds *Dataset) finalize() (uint64, error) {
	msgs := object.DatasetMessages(ds.dataspace, ds.datatype, ds.dataLayout, ds.pipeline)
	msgs = append(msgs, attrMessages(ds.attrs)...)

	addr, err := ds.file.writeHeader(msgs, 0)
	if err != nil {
		return 0, fmt.Errorf("writing dataset %s: %w", ds.path, err)
	}
	return addr, nil
}

func (f *File) stringsAttr(name string, dims []uint64, values []string) (*pendingAttr, error) {
	if uint64(len(values)) != numElements(dims) {
		return nil, fmt.Errorf("attribute %q: %d values for %d elements", name, len(values), numElements(dims))
	}
	msg := message.NewAttribute(name, dtype.VarLenString(f.sizes), newDataspace(dims), f.storeStrings(values))
	return &pendingAttr{msg: msg}, nil
}

func rawAttr(name string, dt *message.Datatype, dims []uint64, data []byte) (*pendingAttr, error) {
	if dt == nil {
		return nil, fmt.Errorf("attribute %q: nil datatype", name)
	}
	if want := dtype.DataSize(dt, numElements(dims)); uint64(len(data)) != want {
		return nil, fmt.Errorf("attribute %q: data size mismatch: expected %d, got %d", name, want, len(data))
	}
	return &pendingAttr{msg: message.NewAttribute(name, dt, newDataspace(dims), data)}, nil
}

func appendAttr(attrs []*pendingAttr, name string, build func() (*pendingAttr, error)) ([]*pendingAttr, error) {
	if name == "" {
		return attrs, fmt.Errorf("attribute name cannot be empty")
	}
	for _, a := range attrs {
		if a.msg.Name == name {
			return attrs, fmt.Errorf("attribute %q: %w", name, ErrExists)
		}
	}
	a, err := build()
	if err != nil {
		return attrs, err
	}
	return append(attrs, a), nil
}

func attrMessages(attrs []*pendingAttr) []message.Encodable {
	msgs := make([]message.Encodable, len(attrs))
	for i, a := range attrs {
		msgs[i] = a.msg
	}
	return msgs
}

func newDataspace(dims []uint64) *message.Dataspace {
	if dims == nil {
		return message.NewScalarDataspace()
	}
	return message.NewDataspace(dims)
}

func numElements(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// inferDimensionsAndType walks nested slices and arrays. A non-slice value
// has nil dimensions.
func inferDimensionsAndType(val reflect.Value) ([]uint64, reflect.Type) {
	var dims []uint64
	current := val

	for {
		switch current.Kind() {
		case reflect.Slice, reflect.Array:
			dims = append(dims, uint64(current.Len()))
			if current.Len() == 0 {
				t := current.Type().Elem()
				for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
					dims = append(dims, 0)
					t = t.Elem()
				}
				return dims, t
			}
			current = current.Index(0)
		default:
			return dims, current.Type()
		}
	}
}

func flattenStrings(val reflect.Value) ([]string, error) {
	switch val.Kind() {
	case reflect.String:
		return []string{val.String()}, nil
	case reflect.Slice, reflect.Array:
		var out []string
		for i := 0; i < val.Len(); i++ {
			s, err := flattenStrings(val.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported string element %v", val.Type())
	}
}

// valueAttr builds an attribute from a Go value. Strings are stored
// fixed-length with a NUL terminator.
func valueAttr(name string, value any) (*pendingAttr, error) {
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("attribute %q: nil value", name)
	}

	if val.Kind() == reflect.String {
		return &pendingAttr{msg: stringAttr(name, val.String())}, nil
	}
	if val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.String {
		msg, err := stringArrayAttr(name, val)
		return &pendingAttr{msg: msg}, err
	}

	var dims []uint64
	elemType := val.Type()
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		dims = []uint64{uint64(val.Len())}
		elemType = val.Type().Elem()
	}

	dt, err := dtype.GoTypeToDatatype(elemType)
	if err != nil {
		return nil, fmt.Errorf("unsupported attribute type %v: %w", elemType, err)
	}

	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}

	return &pendingAttr{msg: message.NewAttribute(name, dt, newDataspace(dims), data)}, nil
}

func stringAttr(name string, s string) *message.Attribute {
	data := make([]byte, len(s)+1)
	copy(data, s)
	dt := message.NewStringDatatype(uint32(len(data)), message.PadNullTerm, message.CharsetASCII)
	return message.NewAttribute(name, dt, message.NewScalarDataspace(), data)
}

func stringArrayAttr(name string, val reflect.Value) (*message.Attribute, error) {
	n := val.Len()
	if n == 0 {
		return nil, fmt.Errorf("attribute %q: empty string array", name)
	}

	maxLen := 0
	for i := 0; i < n; i++ {
		if l := len(val.Index(i).String()); l > maxLen {
			maxLen = l
		}
	}
	strLen := maxLen + 1

	data := make([]byte, n*strLen)
	for i := 0; i < n; i++ {
		copy(data[i*strLen:], val.Index(i).String())
	}

	dt := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)
	return message.NewAttribute(name, dt, message.NewDataspace([]uint64{uint64(n)}), data), nil
}
