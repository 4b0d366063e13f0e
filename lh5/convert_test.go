package lh5

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/ipc"
	"github.com/robert-malhotra/go-lh5/internal/logging"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

func float64s(t *testing.T, ds *container.Dataset) []float64 {
	t.Helper()
	require.Equal(t, message.ClassFloatPoint, ds.Class())
	require.EqualValues(t, 8, ds.Type.Size)
	out := make([]float64, len(ds.Data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(ds.Data[8*i:]))
	}
	return out
}

func stringAttr(t *testing.T, as interface {
	StringAttr(string) (string, bool)
}, name string) string {
	t.Helper()
	v, ok := as.StringAttr(name)
	require.True(t, ok, "attribute %s", name)
	return v
}

func tableErrors(t *testing.T, err error) map[string]error {
	t.Helper()
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr), "expected a multierror, got %v", err)

	out := map[string]error{}
	for _, e := range merr.Errors {
		var te *TableError
		require.True(t, errors.As(e, &te))
		out[te.Table] = te.Err
	}
	return out
}

func TestConvertToLH5(t *testing.T) {
	path := writeRaw(t, scenarioA())
	opts, hook := testOptions(t)

	require.NoError(t, ConvertToLH5E(path, opts))
	assert.Empty(t, entriesAt(hook, logrus.ErrorLevel))
	assert.Empty(t, entriesAt(hook, logrus.WarnLevel))

	root := load(t, path)
	assert.False(t, root.Exists("header"))
	assert.Equal(t, []string{"stp"}, root.Members())

	stp, err := root.Group("stp")
	require.NoError(t, err)
	assert.Equal(t, "struct{det00}", stringAttr(t, stp, "datatype"))
	assert.False(t, stp.HasAttr("type"))

	det, err := root.Group("stp/det00")
	require.NoError(t, err)
	assert.Equal(t, "table{energy,time}", stringAttr(t, det, "datatype"))
	assert.False(t, det.HasAttr("class"))
	assert.ElementsMatch(t, []string{"energy", "time"}, det.Members())

	energy, err := root.Dataset("stp/det00/energy")
	require.NoError(t, err)
	assert.Equal(t, "keV", stringAttr(t, energy, "units"))
	assert.Equal(t, "array<1>{real}", stringAttr(t, energy, "datatype"))
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, float64s(t, energy))

	tm, err := root.Dataset("stp/det00/time")
	require.NoError(t, err)
	assert.False(t, tm.HasAttr("units"))
	assert.Equal(t, []float64{10, 20, 30}, float64s(t, tm))
}

func TestConvertToLH5EmptyColumn(t *testing.T) {
	desc := scenarioA()
	desc.tables[0].columns[1].pages = nil
	desc.tables[0].columns = append(desc.tables[0].columns,
		rawColumn{name: "label", form: FormString},
		rawColumn{name: "count", form: FormInt},
	)
	path := writeRaw(t, desc)

	reg := prometheus.NewRegistry()
	opts, hook := testOptions(t)
	opts.Metrics = NewMetrics(reg)

	require.NoError(t, ConvertToLH5E(path, opts))
	assert.Len(t, entriesAt(hook, logrus.WarnLevel), 3)

	root := load(t, path)
	tm, err := root.Dataset("stp/det00/time")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, tm.Dims)
	assert.EqualValues(t, 8, tm.Type.Size)
	assert.Equal(t, "array<1>{real}", stringAttr(t, tm, "datatype"))

	label, err := root.Dataset("stp/det00/label")
	require.NoError(t, err)
	assert.True(t, label.IsVarLenString())
	assert.Equal(t, []uint64{0}, label.Dims)
	assert.Equal(t, "array<1>{string}", stringAttr(t, label, "datatype"))

	count, err := root.Dataset("stp/det00/count")
	require.NoError(t, err)
	assert.True(t, count.Type.Signed)
	assert.EqualValues(t, 4, count.Type.Size)

	assert.Equal(t, 3.0, counterValue(t, reg, "lh5conv_empty_columns_total"))
	assert.Equal(t, 4.0, counterValue(t, reg, "lh5conv_columns_total", "direction", "to_lh5"))
	assert.Equal(t, 1.0, counterValue(t, reg, "lh5conv_files_total", "direction", "to_lh5", "result", "success"))
}

func TestConvertToLH5AuxTable(t *testing.T) {
	desc := scenarioA()
	desc.tables = append(desc.tables, rawTable{
		name:    "vertices",
		columns: []rawColumn{{name: "xloc_in_m", form: FormFloat, pages: []float32{0.5, 1}}},
	})
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.AuxTables = []string{"vertices"}
	require.NoError(t, ConvertToLH5E(path, opts))

	root := load(t, path)
	assert.ElementsMatch(t, []string{"stp", "vertices"}, root.Members())
	assert.False(t, root.Exists("stp/vertices"))

	stp, err := root.Group("stp")
	require.NoError(t, err)
	assert.Equal(t, "struct{det00}", stringAttr(t, stp, "datatype"))

	vertices, err := root.Group("vertices")
	require.NoError(t, err)
	assert.Equal(t, "table{xloc}", stringAttr(t, vertices, "datatype"))
}

func TestConvertToLH5OnlyAuxTables(t *testing.T) {
	desc := rawFile{tables: []rawTable{{
		name:    "vertices",
		columns: []rawColumn{{name: "n", form: FormInt, pages: []int32{1}}},
	}}}
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.AuxTables = []string{"vertices"}
	require.NoError(t, ConvertToLH5E(path, opts))

	root := load(t, path)
	assert.Equal(t, []string{"vertices"}, root.Members())
}

func TestConvertToLH5UIDLinks(t *testing.T) {
	path := writeRaw(t, scenarioA())

	var rec ipc.Recorder
	opts, _ := testOptions(t)
	opts.UIDMap = map[int]string{5: "det00", 9: "absent"}
	opts.Notifier = &rec
	require.NoError(t, ConvertToLH5E(path, opts))

	root := load(t, path)
	link, err := root.SoftLink("stp/__by_uid__/det00005")
	require.NoError(t, err)
	assert.Equal(t, "/stp/det00", link.Target)
	assert.False(t, root.Exists("stp/__by_uid__/det00009"))

	links, err := root.Group("stp/__by_uid__")
	require.NoError(t, err)
	assert.Equal(t, "struct{det00005}", stringAttr(t, links, "datatype"))

	stp, err := root.Group("stp")
	require.NoError(t, err)
	assert.Equal(t, "struct{__by_uid__,det00}", stringAttr(t, stp, "datatype"))

	assert.Equal(t, []string{ipc.Message(ipc.LinksGroupName, LinksGroup)}, rec.Messages)

	hf, err := hdf5.Open(path)
	require.NoError(t, err)
	defer hf.Close()
	ds, err := hf.OpenDataset("/stp/__by_uid__/det00005/energy")
	require.NoError(t, err)
	vals, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, vals)
}

func TestConvertToLH5NoLinkToFailedTable(t *testing.T) {
	desc := scenarioA()
	desc.tables[0].declared = 3
	desc.tables = append(desc.tables, rawTable{
		name:    "good",
		columns: []rawColumn{{name: "a", form: FormDouble, pages: []float64{1}}},
	})
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.UIDMap = map[int]string{5: "det00", 7: "good"}
	errs := tableErrors(t, ConvertToLH5E(path, opts))
	require.Len(t, errs, 1)
	assert.True(t, ErrColumnCount.Is(errs["det00"]))

	root := load(t, path)
	assert.False(t, root.Exists("stp/__by_uid__/det00005"))
	link, err := root.SoftLink("stp/__by_uid__/det00007")
	require.NoError(t, err)
	assert.Equal(t, "/stp/good", link.Target)

	links, err := root.Group("stp/__by_uid__")
	require.NoError(t, err)
	assert.Equal(t, "struct{det00007}", stringAttr(t, links, "datatype"))
}

func TestConvertToLH5LinkFormat(t *testing.T) {
	desc := scenarioA()
	desc.tables = append(desc.tables, rawTable{
		name:    "vertices",
		columns: []rawColumn{{name: "n", form: FormInt, pages: []int32{1}}},
	})
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.UIDMap = map[int]string{1: "vertices"}
	opts.AuxTables = []string{"vertices"}
	opts.LinkFormat = "ch%d"
	require.NoError(t, ConvertToLH5E(path, opts))

	link, err := load(t, path).SoftLink("stp/__by_uid__/ch1")
	require.NoError(t, err)
	assert.Equal(t, "/vertices", link.Target)
}

func TestConvertToLH5Twice(t *testing.T) {
	path := writeRaw(t, scenarioA())
	opts, _ := testOptions(t)
	require.True(t, ConvertToLH5(path, opts))

	err := ConvertToLH5E(path, opts)
	require.Error(t, err)
	assert.True(t, logging.ErrFatal.Is(err))
	assert.False(t, ConvertToLH5(path, opts))
}

func TestConvertToLH5AlreadyConvertedTable(t *testing.T) {
	path := writeRaw(t, scenarioA())

	f, err := container.Load(path)
	require.NoError(t, err)
	det, err := f.Root().Group("stp/det00")
	require.NoError(t, err)
	require.NoError(t, det.SetStringAttr("units", "keV"))
	require.NoError(t, f.Save())

	opts, _ := testOptions(t)
	errs := tableErrors(t, ConvertToLH5E(path, opts))
	assert.True(t, ErrAlreadyConverted.Is(errs["det00"]))
}

func TestConvertToLH5CountMismatch(t *testing.T) {
	desc := scenarioA()
	desc.tables[0].declared = 3
	desc.tables = append(desc.tables,
		rawTable{
			name:       "forms",
			columns:    []rawColumn{{name: "a", form: FormDouble, pages: []float64{1}}},
			extraForms: []string{FormInt},
		},
		rawTable{
			name:    "good",
			columns: []rawColumn{{name: "a", form: FormDouble, pages: []float64{1}}},
		},
	)
	path := writeRaw(t, desc)

	opts, hook := testOptions(t)
	err := ConvertToLH5E(path, opts)
	errs := tableErrors(t, err)
	require.Len(t, errs, 2)
	assert.True(t, ErrColumnCount.Is(errs["det00"]))
	assert.True(t, ErrCatalogMismatch.Is(errs["forms"]))

	var tables []any
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			tables = append(tables, e.Data["table"])
		}
	}
	assert.ElementsMatch(t, []any{"det00", "forms"}, tables)

	good, err := load(t, path).Group("stp/good")
	require.NoError(t, err)
	assert.Equal(t, "table{a}", stringAttr(t, good, "datatype"))
}

func TestConvertToLH5InvalidTables(t *testing.T) {
	path := writeRaw(t, rawFile{tables: []rawTable{
		{name: "ok", columns: []rawColumn{{name: "a", form: FormInt, pages: []int32{1}}}},
		{name: "unlisted", columns: []rawColumn{{name: "a", form: FormInt, pages: []int32{1}}}},
		{name: "tmp", columns: []rawColumn{{name: "a__tmp", form: FormInt, pages: []int32{1}}}},
	}})

	f, err := container.Load(path)
	require.NoError(t, err)
	root := f.Root()
	// a column group that is not in names and has no data
	_, err = root.CreateGroup("stp/unlisted/b")
	require.NoError(t, err)
	// a table without its catalog
	_, err = root.CreateGroup("stp/bare")
	require.NoError(t, err)
	// a malformed columns dataset
	require.NoError(t, root.Unlink("stp/ok/columns"))
	_, err = root.CreateScalarUint("stp/ok/columns", 1)
	require.NoError(t, err)
	require.NoError(t, f.Save())

	opts, _ := testOptions(t)
	errs := tableErrors(t, ConvertToLH5E(path, opts))
	assert.True(t, ErrInvalidColumns.Is(errs["ok"]))
	assert.True(t, ErrUnknownColumn.Is(errs["unlisted"]))
	assert.True(t, ErrTemporaryName.Is(errs["tmp"]))
	assert.True(t, ErrMissingMetadata.Is(errs["bare"]))
}

func TestConvertToLH5UnknownForm(t *testing.T) {
	desc := scenarioA()
	desc.tables[0].columns[1] = rawColumn{name: "flag", form: "bool"}
	path := writeRaw(t, desc)
	before := readFile(t, path)

	opts, hook := testOptions(t)
	err := ConvertToLH5E(path, opts)
	require.Error(t, err)
	assert.True(t, ErrUnknownForm.Is(err))
	assert.NotEmpty(t, entriesAt(hook, logrus.ErrorLevel))
	assert.Equal(t, before, readFile(t, path))
}

func TestConvertToLH5Preconditions(t *testing.T) {
	opts, hook := testOptions(t)

	missing := filepath.Join(t.TempDir(), "missing.hdf5")
	err := ConvertToLH5E(missing, opts)
	assert.True(t, logging.ErrFatal.Is(err))
	assert.Contains(t, hook.LastEntry().Message, "does not exist")

	for name, desc := range map[string]rawFile{
		"no header":    {noHeader: true},
		"wrong writer": {writer: "other"},
		"wrong group":  {tableGroup: "hit"},
	} {
		t.Run(name, func(t *testing.T) {
			path := writeRaw(t, desc)
			before := readFile(t, path)

			err := ConvertToLH5E(path, opts)
			assert.True(t, logging.ErrFatal.Is(err))
			assert.Equal(t, before, readFile(t, path))
		})
	}
}

func TestConvertToLH5CustomTableGroup(t *testing.T) {
	desc := scenarioA()
	desc.tableGroup = "hit"
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.TableGroup = "hit"
	require.NoError(t, ConvertToLH5E(path, opts))
	assert.True(t, load(t, path).ExistsAs("hit/det00/energy", container.KindDataset))
}

func TestConvertToLH5Histograms(t *testing.T) {
	desc := scenarioA()
	desc.histograms = true
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	require.NoError(t, ConvertToLH5E(path, opts))
	assert.False(t, load(t, path).Exists("default_histograms"))
}

func TestConvertToLH5DryRun(t *testing.T) {
	path := writeRaw(t, scenarioA())
	before := readFile(t, path)

	opts, hook := testOptions(t)
	opts.DryRun = true
	opts.PartOfBatch = true
	require.True(t, ConvertToLH5(path, opts))

	assert.Equal(t, before, readFile(t, path))
	assert.Empty(t, hook.AllEntries())
}

func TestConvertLogFields(t *testing.T) {
	path := writeRaw(t, scenarioA())

	opts, hook := testOptions(t)
	opts.Standalone = false
	opts.PartOfBatch = true
	require.NoError(t, ConvertToLH5E(path, opts))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "ConvertLH5", entry.Data["subsystem"])
	assert.Equal(t, path, entry.Data["file"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)
}

func TestRoundTrip(t *testing.T) {
	desc := rawFile{tables: []rawTable{{
		name: "det00",
		columns: []rawColumn{
			{name: "energy_in_keV", form: FormDouble, pages: []float64{1e300, -2}},
			{name: `speed_in_m\s`, form: FormFloat, pages: []float32{3.5, 0}},
			{name: "evtid", form: FormInt, pages: []int32{-7, 8}},
			{name: "process", form: FormString, pages: []string{"abc", ""}},
		},
	}}}
	path := writeRaw(t, desc)

	opts, _ := testOptions(t)
	opts.UIDMap = map[int]string{5: "det00"}
	require.NoError(t, ConvertToLH5E(path, opts))

	opts.UIDMap = nil
	units, err := ConvertFromLH5E(path, opts)
	require.NoError(t, err)
	assert.Equal(t, UnitsMap{"det00": {
		"energy":  "keV",
		"speed":   "m/s",
		"evtid":   "",
		"process": "",
	}}, units)

	hf, err := hdf5.Open(path)
	require.NoError(t, err)
	defer hf.Close()

	ds, err := hf.OpenDataset("/stp/det00/energy/pages")
	require.NoError(t, err)
	f64, err := ds.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{1e300, -2}, f64)
	assert.Empty(t, ds.Attrs())

	ds, err = hf.OpenDataset("/stp/det00/speed/pages")
	require.NoError(t, err)
	f32, err := ds.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, []float32{3.5, 0}, f32)

	ds, err = hf.OpenDataset("/stp/det00/evtid/pages")
	require.NoError(t, err)
	i32, err := ds.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, []int32{-7, 8}, i32)

	ds, err = hf.OpenDataset("/stp/det00/process/pages")
	require.NoError(t, err)
	str, err := ds.ReadString()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", ""}, str)

	ds, err = hf.OpenDataset("/stp/det00/process/entries")
	require.NoError(t, err)
	n, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, n)

	root := load(t, path)
	assert.False(t, root.Exists("stp/__by_uid__"))
	stp, err := root.Group("stp")
	require.NoError(t, err)
	assert.False(t, stp.HasAttr("datatype"))

	det, err := root.Group("stp/det00")
	require.NoError(t, err)
	assert.False(t, det.HasAttr("datatype"))

	_, names, err := ReadCatalog(det, "names")
	require.NoError(t, err)
	assert.Equal(t, []string{"energy", "speed", "evtid", "process"}, names)
	_, forms, err := ReadCatalog(det, "forms")
	require.NoError(t, err)
	assert.Equal(t, []string{FormDouble, FormFloat, FormInt, FormString}, forms)

	columns, err := root.Dataset("stp/det00/columns")
	require.NoError(t, err)
	assert.True(t, columns.IsScalar())
	assert.Equal(t, int64(4), int64(binary.LittleEndian.Uint64(columns.Data)))
	entries, err := root.Dataset("stp/det00/entries")
	require.NoError(t, err)
	assert.Equal(t, int64(2), int64(binary.LittleEndian.Uint64(entries.Data)))
}

// writeLH5 builds an LH5 file with a single table whose columns are float64
// datasets of the given lengths.
func writeLH5(t *testing.T, lengths map[string]int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "table.lh5")
	f := container.New(path)
	root := f.Root()
	stp, err := root.CreateGroup("stp")
	require.NoError(t, err)
	require.NoError(t, stp.SetStringAttr("datatype", "struct{t}"))
	tbl, err := root.CreateGroup("stp/t")
	require.NoError(t, err)

	var names []string
	for name, n := range lengths {
		names = append(names, name)
		ds, err := tbl.CreateDataset(name, message.NewFloatDatatype(8, message.OrderLE), []uint64{uint64(n)}, make([]byte, 8*n))
		require.NoError(t, err)
		require.NoError(t, ds.SetStringAttr("datatype", ArrayDatatype(ClassReal)))
	}
	require.NoError(t, tbl.SetStringAttr("datatype", TableDatatype(names)))
	require.NoError(t, f.Save())
	return path
}

func TestConvertFromLH5EntriesMismatch(t *testing.T) {
	path := writeLH5(t, map[string]int{"a": 2, "b": 3})

	opts, _ := testOptions(t)
	_, err := ConvertFromLH5E(path, opts)
	errs := tableErrors(t, err)
	assert.True(t, ErrEntriesMismatch.Is(errs["t"]))
}

func TestConvertFromLH5EmptyTable(t *testing.T) {
	path := writeLH5(t, map[string]int{})

	opts, _ := testOptions(t)
	units, err := ConvertFromLH5E(path, opts)
	require.NoError(t, err)
	assert.Equal(t, UnitsMap{"t": {}}, units)

	entries, err := load(t, path).Dataset("stp/t/entries")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(entries.Data))
}

func TestConvertFromLH5InvalidTables(t *testing.T) {
	path := writeLH5(t, map[string]int{"a": 1})

	f, err := container.Load(path)
	require.NoError(t, err)
	root := f.Root()
	_, err = root.CreateGroup("stp/plain")
	require.NoError(t, err)
	nested, err := root.CreateGroup("stp/nested")
	require.NoError(t, err)
	require.NoError(t, nested.SetStringAttr("datatype", "table{g}"))
	_, err = root.CreateGroup("stp/nested/g")
	require.NoError(t, err)
	wide, err := root.CreateGroup("stp/wide")
	require.NoError(t, err)
	require.NoError(t, wide.SetStringAttr("datatype", "table{m}"))
	_, err = wide.CreateDataset("m", message.NewFloatDatatype(8, message.OrderLE), []uint64{2, 2}, make([]byte, 32))
	require.NoError(t, err)
	require.NoError(t, f.Save())

	opts, _ := testOptions(t)
	_, err = ConvertFromLH5E(path, opts)
	errs := tableErrors(t, err)
	require.Len(t, errs, 3)
	assert.True(t, ErrNotLGDO.Is(errs["plain"]))
	assert.True(t, ErrNotColumn.Is(errs["nested"]))
	assert.True(t, ErrNotSimple.Is(errs["wide"]))

	assert.True(t, load(t, path).ExistsAs("stp/t/a/pages", container.KindDataset))
}

func TestConvertFromLH5Preconditions(t *testing.T) {
	path := writeLH5(t, map[string]int{"a": 1})
	before := readFile(t, path)

	opts, _ := testOptions(t)
	opts.AuxTables = []string{"vertices"}
	units, err := ConvertFromLH5E(path, opts)
	assert.True(t, logging.ErrFatal.Is(err))
	assert.Empty(t, units)
	assert.Equal(t, before, readFile(t, path))

	opts.AuxTables = nil
	opts.TableGroup = "hit"
	_, ok := ConvertFromLH5(path, opts)
	assert.False(t, ok)
	assert.Equal(t, before, readFile(t, path))
}

func TestConvertFromLH5DryRun(t *testing.T) {
	path := writeLH5(t, map[string]int{"a": 1})
	before := readFile(t, path)

	opts, _ := testOptions(t)
	opts.DryRun = true
	units, ok := ConvertFromLH5(path, opts)
	require.True(t, ok)
	assert.Equal(t, UnitsMap{"t": {"a": ""}}, units)
	assert.Equal(t, before, readFile(t, path))
}

func TestNilMetrics(t *testing.T) {
	assert.Nil(t, NewMetrics(nil))

	var m *Metrics
	m.fileDone(directionToLH5, nil)
	m.tableDone(directionToLH5, errors.New("x"))
	m.columnDone(directionFromLH5)
	m.emptyColumn()
}

// counterValue sums the counters of a family whose labels match the given
// name/value pairs.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metrics
				}
			}
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
