package command

import (
	"sort"

	"github.com/robert-malhotra/go-lh5/internal/logging"
	"github.com/robert-malhotra/go-lh5/lh5"
)

const (
	FromLH5Description = "Convert LH5 files in-place back to the remage HDF5 ntuple layout"
	FromLH5Help        = FromLH5Description
)

// FromLH5 represents the `from-lh5` command.
type FromLH5 struct {
	ConversionFlags
}

// Execute converts every input file, it honors the go-flags.Commander
// interface.
func (c *FromLH5) Execute(args []string) error {
	if err := c.setup(); err != nil {
		return err
	}

	if len(c.AuxNtuples) > 0 {
		return c.log().Log(logging.Fatal, lh5.ErrAuxUnsupported.New().Error())
	}

	for _, file := range c.Args.Files {
		if !c.exists(file) {
			continue
		}
		units, _ := lh5.ConvertFromLH5(file, c.options())
		c.logUnits(file, units)
	}

	return c.finish()
}

func (c *FromLH5) logUnits(file string, units lh5.UnitsMap) {
	log := c.log().WithField("file", file)

	tables := make([]string, 0, len(units))
	for t := range units {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, t := range tables {
		columns := make([]string, 0, len(units[t]))
		for col := range units[t] {
			columns = append(columns, col)
		}
		sort.Strings(columns)
		for _, col := range columns {
			if u := units[t][col]; u != "" {
				log.Detailf("%s/%s has units %s", t, col, u)
			}
		}
	}
}
