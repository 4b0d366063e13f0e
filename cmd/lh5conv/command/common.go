package command

import (
	"io"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/robert-malhotra/go-lh5/internal/logging"
	"github.com/robert-malhotra/go-lh5/lh5"
)

// ErrConversionFailed is returned by the conversion commands when any error
// was logged.
var ErrConversionFailed = errors.NewKind("conversion finished with %d error(s)")

// ConversionFlags are the options shared by both conversion directions.
type ConversionFlags struct {
	Verbose     bool     `short:"v" description:"Increase verbosity"`
	LogLevel    string   `long:"log-level" env:"LH5CONV_LOG_LEVEL" choice:"debug" choice:"detail" choice:"summary" choice:"warning" choice:"error" default:"summary" description:"logging level"`
	DryRun      bool     `short:"n" long:"dry-run" description:"Do not modify the on-disk files, only test the changes (on a full in-memory copy of the file)"`
	NtupleGroup string   `long:"ntuple-group" env:"LH5CONV_NTUPLE_GROUP" default:"stp" description:"HDF5 group name that remage was instructed to use"`
	AuxNtuples  []string `long:"aux-ntuples" description:"Auxiliary ntuples to be pulled out of the main HDF5 group, may be repeated"`
	MetricsFile string   `long:"metrics-file" description:"Write conversion metrics in the Prometheus text format to this file"`
	Compression string   `long:"compression" env:"LH5CONV_COMPRESSION" choice:"none" choice:"deflate" choice:"zstd" default:"none" description:"Storage of the datasets of the written files"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1" description:"Input HDF5 files"`
	} `positional-args:"yes" required:"yes"`

	out      io.Writer
	logger   *logrus.Logger
	counter  *logging.ErrorCounter
	registry *prometheus.Registry
	metrics  *lh5.Metrics
}

// setup prepares logging and metrics.
func (c *ConversionFlags) setup() error {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	if c.Verbose && level > logging.Detail {
		level = logging.Detail
	}

	if c.out == nil {
		c.out = os.Stderr
	}
	c.logger, c.counter = logging.NewLogrus(c.out, level)

	if c.MetricsFile != "" {
		c.registry = prometheus.NewRegistry()
		c.metrics = lh5.NewMetrics(c.registry)
	}
	return nil
}

// options returns the converter options shared by both directions.
func (c *ConversionFlags) options() lh5.Options {
	return lh5.Options{
		TableGroup:  c.NtupleGroup,
		AuxTables:   c.AuxNtuples,
		DryRun:      c.DryRun,
		Compression: lh5.Compression(c.Compression),
		PartOfBatch: len(c.Args.Files) > 1,
		Standalone:  true,
		Logger:      c.logger,
		Metrics:     c.metrics,
	}
}

// log returns the command's own log sink.
func (c *ConversionFlags) log() *logging.Logger {
	return logging.New(c.logger)
}

// exists logs an error for a missing input file.
func (c *ConversionFlags) exists(file string) bool {
	if _, err := os.Stat(file); err != nil {
		c.log().Errorf("%s does not exist", file)
		return false
	}
	return true
}

// finish reports memory use, writes the metrics and turns logged errors
// into the command result.
func (c *ConversionFlags) finish() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.log().Debugf("peak memory usage: %d MiB", ms.Sys/1024/1024)

	if c.registry != nil {
		if err := prometheus.WriteToTextfile(c.MetricsFile, c.registry); err != nil {
			c.log().Errorf("writing metrics: %s", err)
		}
	}

	if c.counter.HadError() {
		return ErrConversionFailed.New(c.counter.Count())
	}
	return nil
}
