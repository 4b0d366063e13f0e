// Package lh5 converts remage ntuple output between the raw layout written
// by the Geant4 HDF5 ntuple writer and LH5.
//
// Raw layout: every table is a group with the catalog datasets names, forms,
// columns (and entries), plus one group per column holding a pages dataset.
// LH5 layout: every table is a group with a table{...} datatype attribute
// whose columns are array<1>{...} datasets, optionally with units.
//
// Files are converted in place. A failing table does not stop the others;
// the result of a file is the combination of all table results.
package lh5

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/ipc"
	"github.com/robert-malhotra/go-lh5/internal/logging"
)

const (
	// DefaultTableGroup is the group remage writes its ntuples to.
	DefaultTableGroup = "stp"
	// DefaultLinkFormat formats uids into link names.
	DefaultLinkFormat = "det%05d"
	// LinksGroup is the name of the group holding the uid links.
	LinksGroup = "__by_uid__"
)

// Options configures one conversion run.
type Options struct {
	// TableGroup is the top-level group holding the tables.
	TableGroup string
	// AuxTables are tables moved out of TableGroup to the top level.
	AuxTables []string
	// UIDMap maps uids to table names; each mapped table gets a soft link
	// in the links group, named by formatting its uid with LinkFormat.
	UIDMap map[int]string
	// LinkFormat is a fmt format with a single integer verb.
	LinkFormat string
	// DryRun converts in memory and never writes the file.
	DryRun bool
	// Compression selects the dataset storage of the written file. Every
	// dataset is rewritten, so it also applies to unconverted ones.
	Compression Compression
	// PartOfBatch adds the file name to every log line.
	PartOfBatch bool
	// Standalone drops the subsystem field from log lines.
	Standalone bool

	// Logger receives the log output; the logrus standard logger if nil.
	Logger *logrus.Logger
	// Notifier receives the links group announcement; may be nil.
	Notifier ipc.Notifier
	// Metrics records conversion results; may be nil.
	Metrics *Metrics
}

func (o Options) withDefaults() Options {
	if o.TableGroup == "" {
		o.TableGroup = DefaultTableGroup
	}
	if o.LinkFormat == "" {
		o.LinkFormat = DefaultLinkFormat
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Notifier == nil {
		o.Notifier = ipc.Discard
	}
	return o
}

// UnitsMap holds the units of every converted column, by table and column.
// Columns without units map to "".
type UnitsMap map[string]map[string]string

// converter holds the state of one file conversion.
type converter struct {
	path      string
	direction string
	opts      Options
	log       *logging.Logger
	file      *container.File

	linksGroup *container.Group
	linkNames  []string
}

func newConverter(path, direction string, opts Options) *converter {
	opts = opts.withDefaults()

	log := logging.New(opts.Logger)
	if !opts.Standalone {
		log = log.WithField("subsystem", "ConvertLH5")
	}
	if opts.PartOfBatch {
		log = log.WithField("file", path)
	}
	if opts.DryRun {
		log = log.WithField("dry_run", true).Quiet()
	}

	return &converter{
		path:      path,
		direction: direction,
		opts:      opts,
		log:       log,
	}
}

// ConvertToLH5 converts the raw file at path to LH5 in place and reports
// whether every table was converted. Failures are logged.
func ConvertToLH5(path string, opts Options) bool {
	return ConvertToLH5E(path, opts) == nil
}

// ConvertToLH5E is like ConvertToLH5 but returns the failures. Table
// failures are collected in a *multierror.Error.
func ConvertToLH5E(path string, opts Options) error {
	c := newConverter(path, directionToLH5, opts)
	err := c.run(c.toLH5)
	c.opts.Metrics.fileDone(c.direction, err)
	return err
}

// ConvertFromLH5 converts the LH5 file at path back to the raw layout in
// place. It returns the units of the converted columns and whether every
// table was converted. Failures are logged.
func ConvertFromLH5(path string, opts Options) (UnitsMap, bool) {
	units, err := ConvertFromLH5E(path, opts)
	return units, err == nil
}

// ConvertFromLH5E is like ConvertFromLH5 but returns the failures.
func ConvertFromLH5E(path string, opts Options) (UnitsMap, error) {
	c := newConverter(path, directionFromLH5, opts)
	units := UnitsMap{}
	err := c.run(func() error { return c.fromLH5(units) })
	c.opts.Metrics.fileDone(c.direction, err)
	return units, err
}

// run executes a file conversion. Errors that did not come through the
// log sink yet are logged here.
func (c *converter) run(convert func() error) error {
	err := convert()
	if err == nil {
		return nil
	}

	if _, ok := err.(*multierror.Error); !ok && !logging.ErrFatal.Is(err) {
		c.log.Errorf("%s", err)
	}
	return err
}

// open loads the file into memory.
func (c *converter) open() error {
	storage, err := c.opts.Compression.storage()
	if err != nil {
		return err
	}
	if _, err := os.Stat(c.path); err != nil {
		if os.IsNotExist(err) {
			return c.log.Log(logging.Fatal, ErrFileNotFound.New(c.path).Error())
		}
		return err
	}

	f, err := container.Load(c.path)
	if err != nil {
		return err
	}
	f.SetStorage(storage)
	c.file = f
	return nil
}

// close writes the file back unless this is a dry run.
func (c *converter) close() error {
	if c.opts.DryRun {
		return nil
	}
	if err := c.file.Save(); err != nil {
		return fmt.Errorf("writing %s: %w", c.path, err)
	}
	return nil
}

// tableFailed logs a table failure and adds it to errs.
func (c *converter) tableFailed(errs *multierror.Error, table string, err error) *multierror.Error {
	c.log.WithField("table", table).Errorf("%s", err)
	return multierror.Append(errs, &TableError{Table: table, Err: err})
}
