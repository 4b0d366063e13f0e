package lh5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/dtype"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

func TestFormRoundTrip(t *testing.T) {
	for _, form := range []string{FormString, FormInt, FormFloat, FormDouble} {
		dt, err := FormToDatatype(form)
		require.NoError(t, err, form)
		got, err := DatatypeToForm(dt)
		require.NoError(t, err, form)
		assert.Equal(t, form, got)
	}

	_, err := FormToDatatype("bool")
	assert.True(t, ErrUnknownForm.Is(err))
}

func TestFormValuesRoundTrip(t *testing.T) {
	dt, err := FormToDatatype(FormInt)
	require.NoError(t, err)
	data, err := dtype.EncodeScalar(dt, int32(-7))
	require.NoError(t, err)
	i, err := dtype.ReadScalar[int32](dt, data)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	dt, err = FormToDatatype(FormFloat)
	require.NoError(t, err)
	data, err = dtype.EncodeScalar(dt, float32(3.5))
	require.NoError(t, err)
	f, err := dtype.ReadScalar[float32](dt, data)
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f)

	dt, err = FormToDatatype(FormDouble)
	require.NoError(t, err)
	data, err = dtype.EncodeScalar(dt, 1e300)
	require.NoError(t, err)
	d, err := dtype.ReadScalar[float64](dt, data)
	require.NoError(t, err)
	assert.Equal(t, 1e300, d)

	dt, err = FormToDatatype(FormString)
	require.NoError(t, err)
	assert.True(t, dt.IsVarLen())
	assert.True(t, dt.IsString())
}

func TestDatatypeMapping(t *testing.T) {
	fixed := message.NewStringDatatype(4, message.PadNullTerm, message.CharsetASCII)
	unsigned := message.NewFixedPointDatatype(8, false, message.OrderLE)

	form, err := DatatypeToForm(fixed)
	require.NoError(t, err)
	assert.Equal(t, FormString, form)

	form, err = DatatypeToForm(unsigned)
	require.NoError(t, err)
	assert.Equal(t, FormInt, form)

	for _, dt := range []*message.Datatype{fixed, container.VarLenString()} {
		class, err := DatatypeToLGDO(dt)
		require.NoError(t, err)
		assert.Equal(t, ClassString, class)
	}
	for _, dt := range []*message.Datatype{unsigned, message.NewFloatDatatype(4, message.OrderLE)} {
		class, err := DatatypeToLGDO(dt)
		require.NoError(t, err)
		assert.Equal(t, ClassReal, class)
	}

	compound := &message.Datatype{Class: message.ClassCompound}
	_, err = DatatypeToForm(compound)
	assert.True(t, ErrUnknownClass.Is(err))
	_, err = DatatypeToLGDO(compound)
	assert.True(t, ErrUnknownClass.Is(err))
	assert.True(t, isLogicError(err))
}

func TestScalarUint32(t *testing.T) {
	root := container.New("unused").Root()

	ds, err := root.CreateDataset("ok", message.NewFixedPointDatatype(4, false, message.OrderLE), nil, []byte{2, 0, 0, 0})
	require.NoError(t, err)
	v, ok := scalarUint32(ds)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), v)

	ds, err = root.CreateDataset("one", message.NewFixedPointDatatype(4, false, message.OrderLE), []uint64{1}, []byte{3, 0, 0, 0})
	require.NoError(t, err)
	v, ok = scalarUint32(ds)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), v)

	ds, err = root.CreateScalarUint("wide", 2)
	require.NoError(t, err)
	_, ok = scalarUint32(ds)
	assert.False(t, ok)

	ds, err = root.CreateDataset("signed", message.NewFixedPointDatatype(4, true, message.OrderLE), nil, []byte{2, 0, 0, 0})
	require.NoError(t, err)
	_, ok = scalarUint32(ds)
	assert.False(t, ok)
}
