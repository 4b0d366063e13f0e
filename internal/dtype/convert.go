package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	hbin "github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Convert decodes n elements of dt from data into dest, which must point to
// a slice or, for a single element, to a scalar. Numeric elements convert to
// any numeric Go type that does not lose the value's kind: floats never
// convert to integers. h resolves variable-length strings and may be nil
// for other types.
func Convert(dt *message.Datatype, data []byte, n uint64, dest any, h Heap) error {
	if dt == nil {
		return fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("%w: destination %T is not a non-nil pointer", ErrType, dest)
	}
	v = v.Elem()
	if need := DataSize(dt, n); uint64(len(data)) < need {
		return fmt.Errorf("%w: %d bytes for %d elements of %s", hbin.ErrTruncated, len(data), n, dt)
	}

	dec, err := newDecoder(dt, h)
	if err != nil {
		return err
	}
	size := int(dt.Size)

	if v.Kind() != reflect.Slice || v.Type() == bytesType && dt.Class == message.ClassOpaque && n == 1 {
		if n != 1 {
			return fmt.Errorf("%w: %d elements into %s", ErrType, n, v.Type())
		}
		return dec.into(v, data[:size])
	}

	out := reflect.MakeSlice(v.Type(), int(n), int(n))
	if exact(dt, v.Type().Elem()) {
		if _, err := binary.Decode(data[:int(n)*size], order(dt), out.Interface()); err != nil {
			return err
		}
		v.Set(out)
		return nil
	}
	for i := 0; i < int(n); i++ {
		if err := dec.into(out.Index(i), data[i*size:(i+1)*size]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	v.Set(out)
	return nil
}

// ReadScalar decodes the first element of data.
func ReadScalar[T any](dt *message.Datatype, data []byte) (T, error) {
	var v T
	err := Convert(dt, data, 1, &v, nil)
	return v, err
}

// Values decodes n elements into a slice of the natural Go type of dt.
func Values(dt *message.Datatype, data []byte, n uint64, h Heap) (any, error) {
	t, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	out := reflect.New(reflect.SliceOf(t))
	if err := Convert(dt, data, n, out.Interface(), h); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}

// decoder turns one stored element into its natural Go value.
type decoder struct {
	dt    *message.Datatype
	value func(b []byte) (any, error)
}

func newDecoder(dt *message.Datatype, h Heap) (*decoder, error) {
	d := &decoder{dt: dt}
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		if _, err := GoType(dt); err != nil {
			return nil, err
		}
		signed := dt.Signed && dt.Class == message.ClassFixedPoint
		o := order(dt)
		d.value = func(b []byte) (any, error) { return integer(b, o, signed), nil }
	case message.ClassEnum:
		if dt.Base == nil {
			return nil, fmt.Errorf("%w: enum without base type", ErrUnsupported)
		}
		return newDecoder(dt.Base, h)
	case message.ClassFloatPoint:
		o := order(dt)
		switch dt.Size {
		case 4:
			d.value = func(b []byte) (any, error) { return math.Float32frombits(o.Uint32(b)), nil }
		case 8:
			d.value = func(b []byte) (any, error) { return math.Float64frombits(o.Uint64(b)), nil }
		default:
			return nil, fmt.Errorf("%w: %d-byte float", ErrUnsupported, dt.Size)
		}
	case message.ClassString:
		pad := dt.StringPadding
		d.value = func(b []byte) (any, error) { return FixedString(b, pad), nil }
	case message.ClassVarLen:
		if !dt.IsVarLenString {
			return nil, fmt.Errorf("%w: variable-length sequence", ErrUnsupported)
		}
		s, err := refSizes(dt)
		if err != nil {
			return nil, err
		}
		d.value = func(b []byte) (any, error) {
			ref, err := heap.DecodeRef(b, s)
			if err != nil {
				return nil, err
			}
			if ref.IsNull() || ref.Length == 0 {
				return "", nil
			}
			if h == nil {
				return nil, fmt.Errorf("%w: variable-length string without a heap", ErrUnsupported)
			}
			obj, err := h.Read(ref)
			if err != nil {
				return nil, err
			}
			if int(ref.Length) < len(obj) {
				obj = obj[:ref.Length]
			}
			return FixedString(obj, message.PadNullTerm), nil
		}
	case message.ClassOpaque:
		d.value = func(b []byte) (any, error) { return append([]byte(nil), b...), nil }
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
	}
	return d, nil
}

func (d *decoder) into(dst reflect.Value, b []byte) error {
	x, err := d.value(b)
	if err != nil {
		return err
	}
	return assign(dst, x)
}

// integer decodes a 1, 2, 4 or 8 byte integer into its sized Go type.
func integer(b []byte, o binary.ByteOrder, signed bool) any {
	switch len(b) {
	case 1:
		if signed {
			return int8(b[0])
		}
		return b[0]
	case 2:
		if signed {
			return int16(o.Uint16(b))
		}
		return o.Uint16(b)
	case 4:
		if signed {
			return int32(o.Uint32(b))
		}
		return o.Uint32(b)
	}
	if signed {
		return int64(o.Uint64(b))
	}
	return o.Uint64(b)
}

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uint64 || isFloat(k)
}

// assign stores x in dst, converting between numeric kinds.
func assign(dst reflect.Value, x any) error {
	src := reflect.ValueOf(x)
	switch {
	case dst.Kind() == reflect.Interface && src.Type().Implements(dst.Type()):
		dst.Set(src)
		return nil
	case src.Type() == dst.Type():
		dst.Set(src)
		return nil
	case src.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(src.String())
		return nil
	case isNumeric(src.Kind()) && isNumeric(dst.Kind()):
		if isFloat(src.Kind()) && !isFloat(dst.Kind()) {
			break
		}
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("%w: %s element into %s", ErrType, src.Type(), dst.Type())
}

// FixedString returns the text of a fixed-length string element: bytes up
// to the first NUL, without trailing spaces when space padded.
func FixedString(b []byte, pad message.StringPadding) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if pad == message.PadSpacePad {
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}
