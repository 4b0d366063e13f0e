package lh5

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// rawColumn is one column of a raw ntuple. A nil pages leaves the column
// group empty, as the producer does for columns that never got a value.
type rawColumn struct {
	name  string
	form  string
	pages any
}

// rawTable is one raw ntuple group. declared overrides the columns count
// when non-zero; extraForms adds forms without a matching name.
type rawTable struct {
	name       string
	columns    []rawColumn
	declared   uint32
	extraForms []string
}

// rawFile describes a file as written by the ntuple producer.
type rawFile struct {
	tableGroup string
	writer     string
	noHeader   bool
	histograms bool
	tables     []rawTable
}

func fixedString(t *testing.T, g *hdf5.Group, name, value string) {
	t.Helper()
	dt := message.NewStringDatatype(uint32(len(value)), message.PadNullTerm, message.CharsetASCII)
	_, err := g.CreateDatasetRaw(name, dt, nil, []byte(value))
	require.NoError(t, err)
}

func catalog(fields []string) string {
	return JoinCatalog(fields) + "\x00"
}

// writeRaw writes the file to a temporary directory and returns its path.
func writeRaw(t *testing.T, desc rawFile) string {
	t.Helper()

	if desc.tableGroup == "" {
		desc.tableGroup = DefaultTableGroup
	}
	if desc.writer == "" {
		desc.writer = "exlib"
	}

	path := filepath.Join(t.TempDir(), "raw.hdf5")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	root := f.Root()

	if !desc.noHeader {
		hdr, err := root.CreateGroup("header")
		require.NoError(t, err)
		require.NoError(t, hdr.SetAttr("data_schema_version", int32(1)))
		require.NoError(t, hdr.SetAttr("writer", desc.writer))
	}

	if desc.histograms {
		_, err := root.CreateGroup("default_histograms")
		require.NoError(t, err)
	}

	tg, err := root.CreateGroup(desc.tableGroup)
	require.NoError(t, err)
	require.NoError(t, tg.SetAttr("type", "ntuples"))

	for _, table := range desc.tables {
		g, err := tg.CreateGroup(table.name)
		require.NoError(t, err)
		require.NoError(t, g.SetAttr("class", "ntuple"))

		var names, forms []string
		for _, c := range table.columns {
			names = append(names, c.name)
			forms = append(forms, c.form)
		}
		forms = append(forms, table.extraForms...)

		fixedString(t, g, "names", catalog(names))
		fixedString(t, g, "forms", catalog(forms))

		declared := table.declared
		if declared == 0 {
			declared = uint32(len(table.columns))
		}
		raw := make([]byte, 4)
		binary.LittleEndian.PutUint32(raw, declared)
		_, err = g.CreateDatasetRaw("columns", message.NewFixedPointDatatype(4, false, message.OrderLE), nil, raw)
		require.NoError(t, err)

		for _, c := range table.columns {
			cg, err := g.CreateGroup(c.name)
			require.NoError(t, err)
			if c.pages != nil {
				_, err = cg.CreateDataset("pages", c.pages)
				require.NoError(t, err)
			}
		}
	}

	require.NoError(t, f.Close())
	return path
}

// scenarioA is a single table with two double columns, one with units.
func scenarioA() rawFile {
	return rawFile{tables: []rawTable{{
		name: "det00",
		columns: []rawColumn{
			{name: "energy_in_keV", form: FormDouble, pages: []float64{1.5, 2.5, 3.5}},
			{name: "time", form: FormDouble, pages: []float64{10, 20, 30}},
		},
	}}}
}

func testOptions(t *testing.T) (Options, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	return Options{Logger: logger, Standalone: true}, hook
}

func load(t *testing.T, path string) *container.Group {
	t.Helper()
	f, err := container.Load(path)
	require.NoError(t, err)
	return f.Root()
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func entriesAt(hook *test.Hook, level logrus.Level) []string {
	var msgs []string
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}
