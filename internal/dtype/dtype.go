// Package dtype converts between stored elements and Go values.
//
// Integers, floats, enums, bitfields, opaque data and strings are supported.
// Variable-length strings are resolved through a Heap.
package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	hbin "github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

var (
	// ErrUnsupported is returned for datatypes with no Go conversion.
	ErrUnsupported = hbin.ErrUnsupported
	// ErrType is returned when a Go value cannot hold or supply an element.
	ErrType = errors.New("dtype: incompatible Go type")
)

// Heap resolves variable-length element references.
type Heap interface {
	Read(ref heap.Ref) ([]byte, error)
}

var (
	stringType = reflect.TypeOf("")
	bytesType  = reflect.TypeOf([]byte(nil))
)

// GoType returns the Go type an element of dt converts to naturally.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return intType(dt.Size, dt.Signed)
	case message.ClassBitfield:
		return intType(dt.Size, false)
	case message.ClassEnum:
		if dt.Base == nil {
			return nil, fmt.Errorf("%w: enum without base type", ErrUnsupported)
		}
		return GoType(dt.Base)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
	case message.ClassString:
		return stringType, nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return stringType, nil
		}
	case message.ClassOpaque:
		return bytesType, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

// intTypes holds the unsigned and signed Go type of each integer size.
var intTypes = map[uint32][2]reflect.Type{
	1: {reflect.TypeOf(uint8(0)), reflect.TypeOf(int8(0))},
	2: {reflect.TypeOf(uint16(0)), reflect.TypeOf(int16(0))},
	4: {reflect.TypeOf(uint32(0)), reflect.TypeOf(int32(0))},
	8: {reflect.TypeOf(uint64(0)), reflect.TypeOf(int64(0))},
}

func intType(size uint32, signed bool) (reflect.Type, error) {
	types, ok := intTypes[size]
	if !ok {
		return nil, fmt.Errorf("%w: %d-byte integer", ErrUnsupported, size)
	}
	if signed {
		return types[1], nil
	}
	return types[0], nil
}

// GoTypeToDatatype returns the little-endian datatype for a Go element type.
// Slice and array types map to their element type. Strings map to UTF-8
// variable-length strings.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	case reflect.String:
		return message.NewVarLenStringDatatype(message.CharsetUTF8), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrType, t)
}

// DataSize returns the stored size of n elements of dt.
func DataSize(dt *message.Datatype, n uint64) uint64 {
	return uint64(dt.Size) * n
}

// byteOrder reads and appends fixed-size values.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func order(dt *message.Datatype) byteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// exact reports whether elements of dt have the memory layout of Go type t,
// apart from byte order.
func exact(dt *message.Datatype, t reflect.Type) bool {
	if uint32(t.Size()) != dt.Size {
		return false
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return dt.Class == message.ClassFixedPoint && dt.Signed
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return dt.Class == message.ClassFixedPoint && !dt.Signed
	case reflect.Float32, reflect.Float64:
		return dt.Class == message.ClassFloatPoint
	}
	return false
}

// refSizes returns the address widths of a variable-length element.
func refSizes(dt *message.Datatype) (hbin.Sizes, error) {
	s := hbin.Sizes{Offset: int(dt.Size) - 8, Length: 8}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%w: variable-length element of %d bytes", ErrUnsupported, dt.Size)
	}
	return s, nil
}

// DecodeRefs returns the heap references of n variable-length elements.
func DecodeRefs(dt *message.Datatype, data []byte, n uint64) ([]heap.Ref, error) {
	s, err := refSizes(dt)
	if err != nil {
		return nil, err
	}
	if need := DataSize(dt, n); uint64(len(data)) < need {
		return nil, fmt.Errorf("%w: %d bytes for %d elements", hbin.ErrTruncated, len(data), n)
	}
	refs := make([]heap.Ref, n)
	for i := range refs {
		if refs[i], err = heap.DecodeRef(data[i*int(dt.Size):], s); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// EncodeRefs stores refs as variable-length elements with the file's
// address width.
func EncodeRefs(refs []heap.Ref, s hbin.Sizes) []byte {
	e := hbin.NewEncoder(s)
	for _, r := range refs {
		r.Encode(e)
	}
	return e.Bytes()
}

// VarLenString returns a UTF-8 variable-length string type for a file with
// the given address width.
func VarLenString(s hbin.Sizes) *message.Datatype {
	dt := message.NewVarLenStringDatatype(message.CharsetUTF8)
	dt.Size = uint32(s.VarLenRefSize())
	return dt
}
