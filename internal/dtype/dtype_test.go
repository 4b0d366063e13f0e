package dtype

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hbin "github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

type mapHeap map[uint32][]byte

func (h mapHeap) Read(ref heap.Ref) ([]byte, error) {
	b, ok := h[ref.Index]
	if !ok {
		return nil, errors.New("no such object")
	}
	return b, nil
}

func TestGoType(t *testing.T) {
	cases := []struct {
		dt   *message.Datatype
		want reflect.Type
	}{
		{message.NewFixedPointDatatype(1, true, message.OrderLE), reflect.TypeOf(int8(0))},
		{message.NewFixedPointDatatype(2, false, message.OrderBE), reflect.TypeOf(uint16(0))},
		{message.NewFixedPointDatatype(4, true, message.OrderLE), reflect.TypeOf(int32(0))},
		{message.NewFixedPointDatatype(8, false, message.OrderLE), reflect.TypeOf(uint64(0))},
		{message.NewFloatDatatype(4, message.OrderLE), reflect.TypeOf(float32(0))},
		{message.NewFloatDatatype(8, message.OrderLE), reflect.TypeOf(float64(0))},
		{message.NewStringDatatype(8, message.PadNullTerm, message.CharsetASCII), stringType},
		{message.NewVarLenStringDatatype(message.CharsetUTF8), stringType},
	}
	for _, c := range cases {
		got, err := GoType(c.dt)
		require.NoError(t, err, c.dt.String())
		assert.Equal(t, c.want, got, c.dt.String())
	}

	_, err := GoType(message.NewFixedPointDatatype(3, true, message.OrderLE))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = GoType(nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestGoTypeToDatatype(t *testing.T) {
	dt, err := GoTypeToDatatype(reflect.TypeOf([]uint32(nil)))
	require.NoError(t, err)
	assert.Equal(t, message.ClassFixedPoint, dt.Class)
	assert.Equal(t, uint32(4), dt.Size)
	assert.False(t, dt.Signed)

	dt, err = GoTypeToDatatype(reflect.TypeOf([][]float64(nil)))
	require.NoError(t, err)
	assert.Equal(t, message.ClassFloatPoint, dt.Class)
	assert.Equal(t, uint32(8), dt.Size)

	dt, err = GoTypeToDatatype(reflect.TypeOf(""))
	require.NoError(t, err)
	assert.True(t, dt.IsVarLen())
	assert.True(t, dt.IsString())

	_, err = GoTypeToDatatype(reflect.TypeOf(struct{}{}))
	assert.ErrorIs(t, err, ErrType)
}

func TestConvertExact(t *testing.T) {
	dt := message.NewFixedPointDatatype(4, false, message.OrderLE)
	data := binary.LittleEndian.AppendUint32(nil, 7)
	data = binary.LittleEndian.AppendUint32(data, 1<<20)

	var got []uint32
	require.NoError(t, Convert(dt, data, 2, &got, nil))
	assert.Equal(t, []uint32{7, 1 << 20}, got)
}

func TestConvertBigEndian(t *testing.T) {
	dt := message.NewFloatDatatype(8, message.OrderBE)
	data, err := Encode(dt, []float64{1.5, -2})
	require.NoError(t, err)
	assert.Equal(t, byte(0x3f), data[0])

	var got []float64
	require.NoError(t, Convert(dt, data, 2, &got, nil))
	assert.Equal(t, []float64{1.5, -2}, got)
}

func TestEncodeByteOrder(t *testing.T) {
	f32be := message.NewFloatDatatype(4, message.OrderBE)
	data, err := Encode(f32be, []int{1, -2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3f, 0x80, 0, 0, 0xc0, 0, 0, 0}, data)

	f64le := message.NewFloatDatatype(8, message.OrderLE)
	data, err = EncodeScalar(f64le, float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}, data)

	u32be := message.NewFixedPointDatatype(4, false, message.OrderBE)
	data, err = Encode(u32be, []int{0x01020304})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	i16le := message.NewFixedPointDatatype(2, true, message.OrderLE)
	data, err = EncodeScalar(i16le, int64(-2))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xff}, data)
}

func TestConvertWidening(t *testing.T) {
	dt := message.NewFixedPointDatatype(2, true, message.OrderLE)
	data, err := Encode(dt, []int16{-3, 300})
	require.NoError(t, err)

	var ints []int64
	require.NoError(t, Convert(dt, data, 2, &ints, nil))
	assert.Equal(t, []int64{-3, 300}, ints)

	var floats []float64
	require.NoError(t, Convert(dt, data, 2, &floats, nil))
	assert.Equal(t, []float64{-3, 300}, floats)

	var vals []any
	require.NoError(t, Convert(dt, data, 2, &vals, nil))
	assert.Equal(t, []any{int16(-3), int16(300)}, vals)
}

func TestConvertRejectsFloatToInt(t *testing.T) {
	dt := message.NewFloatDatatype(4, message.OrderLE)
	data, err := Encode(dt, []float32{1})
	require.NoError(t, err)

	var got []int32
	assert.ErrorIs(t, Convert(dt, data, 1, &got, nil), ErrType)

	var s []string
	assert.ErrorIs(t, Convert(dt, data, 1, &s, nil), ErrType)
}

func TestConvertErrors(t *testing.T) {
	dt := message.NewFixedPointDatatype(4, true, message.OrderLE)
	var got []int32
	assert.ErrorIs(t, Convert(dt, make([]byte, 7), 2, &got, nil), hbin.ErrTruncated)
	assert.ErrorIs(t, Convert(dt, make([]byte, 8), 2, got, nil), ErrType)

	var one int32
	assert.ErrorIs(t, Convert(dt, make([]byte, 8), 2, &one, nil), ErrType)
}

func TestScalar(t *testing.T) {
	dt := message.NewFixedPointDatatype(8, true, message.OrderLE)
	data, err := EncodeScalar(dt, -42)
	require.NoError(t, err)
	assert.Len(t, data, 8)

	v, err := ReadScalar[int64](dt, data)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v)

	f, err := ReadScalar[float64](dt, data)
	require.NoError(t, err)
	assert.Equal(t, -42.0, f)

	_, err = EncodeScalar(dt, []int64{1})
	assert.ErrorIs(t, err, ErrType)
}

func TestFixedStrings(t *testing.T) {
	nullTerm := message.NewStringDatatype(4, message.PadNullTerm, message.CharsetASCII)
	data, err := Encode(nullTerm, []string{"ab", "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ab\x00\x00abc\x00"), data)

	var got []string
	require.NoError(t, Convert(nullTerm, data, 2, &got, nil))
	assert.Equal(t, []string{"ab", "abc"}, got)

	spaced := message.NewStringDatatype(5, message.PadSpacePad, message.CharsetASCII)
	data, err = Encode(spaced, "ge")
	require.NoError(t, err)
	assert.Equal(t, []byte("ge   "), data)

	s, err := ReadScalar[string](spaced, data)
	require.NoError(t, err)
	assert.Equal(t, "ge", s)

	_, err = Encode(spaced, 3)
	assert.ErrorIs(t, err, ErrType)
}

func TestVarLenStrings(t *testing.T) {
	s := hbin.DefaultSizes
	dt := VarLenString(s)
	assert.Equal(t, uint32(16), dt.Size)

	refs := []heap.Ref{
		{Length: 3, Collection: 0x400, Index: 1},
		{},
		{Length: 2, Collection: 0x400, Index: 2},
	}
	data := EncodeRefs(refs, s)
	require.Len(t, data, 48)

	decoded, err := DecodeRefs(dt, data, 3)
	require.NoError(t, err)
	assert.Equal(t, refs, decoded)

	h := mapHeap{1: []byte("Ge76\x00\x00"), 2: []byte("Cu")}
	var got []string
	require.NoError(t, Convert(dt, data, 3, &got, h))
	assert.Equal(t, []string{"Ge7", "", "Cu"}, got)

	err = Convert(dt, data, 3, &got, nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Encode(dt, []string{"x"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestVarLenNarrowOffsets(t *testing.T) {
	s := hbin.Sizes{Offset: 4, Length: 4}
	dt := VarLenString(s)
	assert.Equal(t, uint32(12), dt.Size)

	refs := []heap.Ref{{Length: 1, Collection: 0x80, Index: 5}}
	decoded, err := DecodeRefs(dt, EncodeRefs(refs, s), 1)
	require.NoError(t, err)
	assert.Equal(t, refs, decoded)
}

func TestEncodeNested(t *testing.T) {
	dt := message.NewFixedPointDatatype(1, false, message.OrderLE)
	data, err := Encode(dt, [][]int{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestEnumAndBitfield(t *testing.T) {
	base := message.NewFixedPointDatatype(1, true, message.OrderLE)
	enum := &message.Datatype{Class: message.ClassEnum, Size: 1, Base: base}
	got, err := Values(enum, []byte{0xff, 2}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int8{-1, 2}, got)

	bits := &message.Datatype{Class: message.ClassBitfield, Size: 2, Signed: true}
	got, err = Values(bits, []byte{0xff, 0xff}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xffff}, got)
}

func TestOpaque(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassOpaque, Size: 3}
	data, err := EncodeScalar(dt, []byte{1, 2, 3})
	require.NoError(t, err)

	var b []byte
	require.NoError(t, Convert(dt, data, 1, &b, nil))
	assert.Equal(t, []byte{1, 2, 3}, b)

	_, err = Encode(dt, []byte{1})
	assert.ErrorIs(t, err, ErrType)
}
