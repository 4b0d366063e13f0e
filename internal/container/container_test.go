package container

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Bytes(vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func int32Bytes(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func writeFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.h5")
	f, err := hdf5.Create(path)
	require.NoError(t, err)

	hdr, err := f.Root().CreateGroup("hdr")
	require.NoError(t, err)
	require.NoError(t, hdr.SetAttr("version", int32(1)))
	require.NoError(t, hdr.SetAttr("writer", "exlib"))

	stp, err := f.Root().CreateGroup("stp")
	require.NoError(t, err)
	require.NoError(t, stp.SetStringAttr("datatype", "struct{det}"))
	det, err := stp.CreateGroup("det")
	require.NoError(t, err)
	ds, err := det.CreateDataset("edep", []float64{1.5, 2.5})
	require.NoError(t, err)
	require.NoError(t, ds.SetStringAttr("units", "keV"))
	_, err = det.CreateStringDataset("names", []uint64{2}, []string{"a", ""})
	require.NoError(t, err)
	require.NoError(t, f.Root().CreateSoftLink("alias", "/stp/det"))

	require.NoError(t, f.Close())
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeFixture(t))
	require.NoError(t, err)
	root := f.Root()

	assert.Equal(t, []string{"hdr", "stp", "alias"}, root.Members())
	assert.True(t, root.ExistsAs("stp/det", KindGroup))
	assert.True(t, root.ExistsAs("stp/det/edep", KindDataset))
	assert.True(t, root.ExistsAs("alias", KindSoftLink))
	assert.False(t, root.ExistsAs("alias", KindGroup))
	assert.False(t, root.Exists("stp/missing"))

	hdr, err := root.Group("hdr")
	require.NoError(t, err)
	v, ok := hdr.Int32Attr("version")
	assert.True(t, ok)
	assert.Equal(t, int32(1), v)
	w, ok := hdr.StringAttr("writer")
	assert.True(t, ok)
	assert.Equal(t, "exlib", w)
	_, ok = hdr.Int32Attr("writer")
	assert.False(t, ok)

	edep, err := root.Dataset("stp/det/edep")
	require.NoError(t, err)
	assert.True(t, edep.IsSimple1D())
	assert.Equal(t, message.ClassFloatPoint, edep.Class())
	assert.Equal(t, float64Bytes(1.5, 2.5), edep.Data)
	units, ok := edep.StringAttr("units")
	assert.True(t, ok)
	assert.Equal(t, "keV", units)

	names, err := root.Dataset("stp/det/names")
	require.NoError(t, err)
	assert.True(t, names.IsVarLenString())
	assert.Equal(t, []string{"a", ""}, names.Strings)

	link, err := root.SoftLink("alias")
	require.NoError(t, err)
	assert.Equal(t, "/stp/det", link.Target)
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeFixture(t)
	f, err := Load(path)
	require.NoError(t, err)

	root := f.Root()
	require.NoError(t, root.Move("stp/det", "det"))
	require.NoError(t, root.Unlink("hdr"))
	det, err := root.Group("det")
	require.NoError(t, err)
	require.NoError(t, det.SetStringAttr("datatype", "table{edep,names}"))
	require.NoError(t, f.Save())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")

	reloaded, err := Load(path)
	require.NoError(t, err)
	root = reloaded.Root()
	assert.Equal(t, []string{"stp", "alias", "det"}, root.Members())

	det, err = root.Group("det")
	require.NoError(t, err)
	dt, ok := det.StringAttr("datatype")
	assert.True(t, ok)
	assert.Equal(t, "table{edep,names}", dt)

	edep, err := root.Dataset("det/edep")
	require.NoError(t, err)
	assert.Equal(t, float64Bytes(1.5, 2.5), edep.Data)
	units, _ := edep.StringAttr("units")
	assert.Equal(t, "keV", units)

	names, err := root.Dataset("det/names")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ""}, names.Strings)
}

func TestSaveNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.h5")
	f := New(path)
	assert.Equal(t, path, f.Path())

	root := f.Root()
	_, err := root.CreateGroup("g")
	require.NoError(t, err)
	_, err = root.CreateDataset("g/i", message.NewFixedPointDatatype(4, true, message.OrderLE), []uint64{1}, int32Bytes(-7))
	require.NoError(t, err)
	_, err = root.CreateDataset("g/empty", message.NewFloatDatatype(8, message.OrderLE), []uint64{0}, nil)
	require.NoError(t, err)
	_, err = root.CreateScalarString("g/names", "a\x00b\x00\x00")
	require.NoError(t, err)
	_, err = root.CreateScalarUint("g/entries", 12)
	require.NoError(t, err)
	require.NoError(t, f.Save())

	hf, err := hdf5.Open(path)
	require.NoError(t, err)
	defer hf.Close()

	ds, err := hf.OpenDataset("/g/i")
	require.NoError(t, err)
	i32, err := ds.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{-7}, i32)

	ds, err = hf.OpenDataset("/g/empty")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ds.Shape())

	ds, err = hf.OpenDataset("/g/names")
	require.NoError(t, err)
	assert.True(t, ds.IsScalar())
	assert.Equal(t, 6, ds.DtypeSize())
	raw, err := ds.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, []byte("a\x00b\x00\x00\x00"), raw)

	ds, err = hf.OpenDataset("/g/entries")
	require.NoError(t, err)
	assert.Equal(t, 8, ds.DtypeSize())
	n, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, n)
}

func TestSaveWithStorage(t *testing.T) {
	f, err := Load(writeFixture(t))
	require.NoError(t, err)

	var seen []string
	f.SetStorage(func(path string, ds *Dataset) []hdf5.DatasetOption {
		seen = append(seen, path)
		return []hdf5.DatasetOption{hdf5.WithChunks(1), hdf5.WithDeflate(1)}
	})
	_, err = f.Root().CreateScalarUint("stp/entries", 2)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "chunked.h5")
	require.NoError(t, f.SaveAs(out))
	assert.ElementsMatch(t, []string{"/stp/det/edep", "/stp/det/names"}, seen)

	hf, err := hdf5.Open(out)
	require.NoError(t, err)
	defer hf.Close()

	ds, err := hf.OpenDataset("/stp/det/edep")
	require.NoError(t, err)
	assert.Equal(t, message.LayoutChunked, ds.StorageClass())
	assert.Equal(t, []string{"deflate"}, ds.Filters())
	vals, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, vals)

	ds, err = hf.OpenDataset("/stp/det/names")
	require.NoError(t, err)
	names, err := ds.ReadString()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ""}, names)

	ds, err = hf.OpenDataset("/stp/entries")
	require.NoError(t, err)
	assert.Equal(t, message.LayoutContiguous, ds.StorageClass())
}

func TestCreateScalarUintWraps(t *testing.T) {
	root := New("unused").Root()

	ds, err := root.CreateScalarUint("big", 1<<31)
	require.NoError(t, err)
	assert.True(t, ds.IsScalar())
	assert.Equal(t, int64(math.MinInt32), int64(binary.LittleEndian.Uint64(ds.Data)))
}

func TestCreateErrors(t *testing.T) {
	root := New("unused").Root()

	_, err := root.CreateGroup("a/b")
	assert.ErrorIs(t, err, hdf5.ErrNotFound)

	_, err = root.CreateGroup("a")
	require.NoError(t, err)
	_, err = root.CreateGroup("a")
	assert.ErrorIs(t, err, hdf5.ErrExists)

	_, err = root.CreateDataset("d", message.NewFloatDatatype(8, message.OrderLE), []uint64{2}, float64Bytes(1))
	assert.Error(t, err)

	_, err = root.CreateDataset("s", VarLenString(), []uint64{1}, nil)
	assert.Error(t, err)

	_, err = root.CreateStringDataset("s", []uint64{2}, []string{"x"})
	assert.Error(t, err)

	assert.ErrorIs(t, root.CreateSoftLink("l", "relative"), hdf5.ErrInvalidPath)

	_, err = root.CreateGroup("/")
	assert.ErrorIs(t, err, hdf5.ErrInvalidPath)
}

func TestMove(t *testing.T) {
	root := New("unused").Root()
	_, err := root.CreateGroup("a")
	require.NoError(t, err)
	_, err = root.CreateGroup("a/b")
	require.NoError(t, err)
	_, err = root.CreateGroup("c")
	require.NoError(t, err)

	assert.Error(t, root.Move("a", "a/b/a"))
	assert.ErrorIs(t, root.Move("a", "c"), hdf5.ErrExists)
	assert.ErrorIs(t, root.Move("missing", "x"), hdf5.ErrNotFound)
	assert.ErrorIs(t, root.Move("a", "nowhere/a"), hdf5.ErrNotFound)

	require.NoError(t, root.Move("a/b", "c/b"))
	assert.True(t, root.ExistsAs("c/b", KindGroup))
	assert.False(t, root.Exists("a/b"))

	require.NoError(t, root.Move("a", "a2"))
	assert.Equal(t, []string{"c", "a2"}, root.Members())
}

func TestUnlink(t *testing.T) {
	root := New("unused").Root()
	_, err := root.CreateGroup("a")
	require.NoError(t, err)
	_, err = root.CreateScalarString("a/s", "x")
	require.NoError(t, err)

	assert.ErrorIs(t, root.Unlink("a/t"), hdf5.ErrNotFound)
	require.NoError(t, root.Unlink("a"))
	assert.False(t, root.Exists("a/s"))
	assert.Empty(t, root.Members())
}

func TestLookupThroughDataset(t *testing.T) {
	root := New("unused").Root()
	_, err := root.CreateScalarString("s", "x")
	require.NoError(t, err)

	_, err = root.Group("s")
	assert.ErrorIs(t, err, hdf5.ErrNotGroup)
	_, err = root.Dataset("s/child")
	assert.ErrorIs(t, err, hdf5.ErrNotGroup)

	g, err := root.Group("")
	require.NoError(t, err)
	assert.Same(t, root, g)
}

func TestAttributes(t *testing.T) {
	var as Attributes

	require.NoError(t, as.SetStringAttr("datatype", "real"))
	assert.ErrorIs(t, as.SetStringAttr("datatype", "string"), hdf5.ErrExists)
	v, ok := as.StringAttr("datatype")
	assert.True(t, ok)
	assert.Equal(t, "real", v)

	require.NoError(t, as.SetAttr(&Attr{
		Name: "padded",
		Type: message.NewStringDatatype(6, message.PadSpacePad, message.CharsetASCII),
		Data: []byte("keV   "),
	}))
	v, ok = as.StringAttr("padded")
	assert.True(t, ok)
	assert.Equal(t, "keV", v)

	require.NoError(t, as.SetAttr(&Attr{
		Name: "big",
		Type: message.NewFixedPointDatatype(4, true, message.OrderBE),
		Data: int32Bytes(1),
	}))
	_, ok = as.Int32Attr("big")
	assert.False(t, ok)

	require.NoError(t, as.SetAttr(&Attr{
		Name: "pair",
		Type: message.NewFixedPointDatatype(4, true, message.OrderLE),
		Dims: []uint64{2},
		Data: append(int32Bytes(1), int32Bytes(2)...),
	}))
	_, ok = as.Int32Attr("pair")
	assert.False(t, ok)
	_, ok = as.StringAttr("pair")
	assert.False(t, ok)

	assert.Equal(t, []string{"datatype", "padded", "big", "pair"}, as.AttrNames())
	as.RemoveAttr("padded")
	as.RemoveAttr("missing")
	assert.Equal(t, []string{"datatype", "big", "pair"}, as.AttrNames())
	assert.Nil(t, as.Attr("padded"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "group", KindGroup.String())
	assert.Equal(t, "soft link", KindSoftLink.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
