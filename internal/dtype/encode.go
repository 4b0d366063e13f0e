package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Encode stores the elements of src as dt. src is a scalar, a slice or a
// nested slice, flattened in row-major order. Variable-length strings go
// through the global heap and are not handled here.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	if dt.IsVarLen() {
		return nil, fmt.Errorf("%w: variable-length elements need a heap", ErrUnsupported)
	}
	v := reflect.ValueOf(src)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil value", ErrType)
	}
	if v.Kind() == reflect.Slice && exact(dt, v.Type().Elem()) {
		return binary.Append(make([]byte, 0, v.Len()*int(dt.Size)), order(dt), src)
	}

	var out []byte
	var err error
	flatten(v, func(e reflect.Value) {
		if err != nil {
			return
		}
		out, err = appendElement(out, dt, e)
	})
	return out, err
}

// EncodeScalar stores a single value as dt.
func EncodeScalar(dt *message.Datatype, v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !(rv.Type() == bytesType && dt != nil && dt.Class == message.ClassOpaque) {
		return nil, fmt.Errorf("%w: %T is not a scalar", ErrType, v)
	}
	return Encode(dt, v)
}

// flatten visits the leaves of nested slices and arrays. A []byte is a leaf.
func flatten(v reflect.Value, fn func(reflect.Value)) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Type() != bytesType {
		for i := 0; i < v.Len(); i++ {
			flatten(v.Index(i), fn)
		}
		return
	}
	fn(v)
}

func appendElement(out []byte, dt *message.Datatype, v reflect.Value) ([]byte, error) {
	o := order(dt)
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		var u uint64
		switch {
		case v.CanInt():
			u = uint64(v.Int())
		case v.CanUint():
			u = v.Uint()
		case v.Kind() == reflect.Bool:
			if v.Bool() {
				u = 1
			}
		default:
			return nil, fmt.Errorf("%w: %s into %s", ErrType, v.Type(), dt)
		}
		switch dt.Size {
		case 1:
			return append(out, uint8(u)), nil
		case 2:
			return o.AppendUint16(out, uint16(u)), nil
		case 4:
			return o.AppendUint32(out, uint32(u)), nil
		case 8:
			return o.AppendUint64(out, u), nil
		}
	case message.ClassEnum:
		if dt.Base != nil {
			return appendElement(out, dt.Base, v)
		}
	case message.ClassFloatPoint:
		var f float64
		switch {
		case v.CanFloat():
			f = v.Float()
		case v.CanInt():
			f = float64(v.Int())
		case v.CanUint():
			f = float64(v.Uint())
		default:
			return nil, fmt.Errorf("%w: %s into %s", ErrType, v.Type(), dt)
		}
		switch dt.Size {
		case 4:
			return o.AppendUint32(out, math.Float32bits(float32(f))), nil
		case 8:
			return o.AppendUint64(out, math.Float64bits(f)), nil
		}
	case message.ClassString:
		if v.Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s into %s", ErrType, v.Type(), dt)
		}
		return appendFixed(out, v.String(), dt), nil
	case message.ClassOpaque:
		if v.Type() != bytesType || uint32(v.Len()) != dt.Size {
			return nil, fmt.Errorf("%w: %s into %s", ErrType, v.Type(), dt)
		}
		return append(out, v.Bytes()...), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

// appendFixed truncates or pads s to the string size. Null-terminated
// strings keep room for the terminator.
func appendFixed(out []byte, s string, dt *message.Datatype) []byte {
	size := int(dt.Size)
	limit := size
	if dt.StringPadding == message.PadNullTerm && limit > 0 {
		limit--
	}
	if len(s) > limit {
		s = s[:limit]
	}
	out = append(out, s...)
	pad := byte(0)
	if dt.StringPadding == message.PadSpacePad {
		pad = ' '
	}
	for i := len(s); i < size; i++ {
		out = append(out, pad)
	}
	return out
}
