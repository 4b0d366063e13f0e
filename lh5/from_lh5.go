package lh5

import (
	"github.com/hashicorp/go-multierror"

	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/logging"
)

// fromLH5 converts every table of the file back to the raw layout and
// records the column units in units.
func (c *converter) fromLH5(units UnitsMap) error {
	if len(c.opts.AuxTables) > 0 {
		return c.log.Log(logging.Fatal, ErrAuxUnsupported.New().Error())
	}

	if err := c.open(); err != nil {
		return err
	}
	root := c.file.Root()

	if !root.ExistsAs(c.opts.TableGroup, container.KindGroup) {
		return c.log.Log(logging.Fatal, ErrMissingGroup.New(c.opts.TableGroup).Error())
	}
	c.log.Detailf("Opened LH5 file %s", c.path)

	tg, _ := root.Group(c.opts.TableGroup)

	// the uid links are derived data and point at LH5 tables
	if tg.Exists(LinksGroup) {
		if err := tg.Unlink(LinksGroup); err != nil {
			return err
		}
	}

	var errs *multierror.Error
	for _, name := range tg.Members() {
		tableUnits, err := c.tableFromLH5(tg, name)
		c.opts.Metrics.tableDone(c.direction, err)
		if isLogicError(err) {
			return err
		}
		if err != nil {
			errs = c.tableFailed(errs, name, err)
			continue
		}
		units[name] = tableUnits
	}

	tg.RemoveAttr("datatype")

	if err := c.close(); err != nil {
		return err
	}
	c.log.Summaryf("Done updating HDF5 file %s from LH5", c.path)

	return errs.ErrorOrNil()
}

// tableFromLH5 converts one LH5 table into a raw ntuple group and returns
// the units of its columns.
func (c *converter) tableFromLH5(tg *container.Group, name string) (map[string]string, error) {
	log := c.log.WithField("table", name)
	log.Detailf("visiting")

	g, err := tg.Group(name)
	if err != nil {
		return nil, ErrNotLGDO.Wrap(err)
	}

	datatype, ok := g.StringAttr("datatype")
	g.RemoveAttr("datatype")
	if !ok {
		return nil, ErrNotLGDO.New()
	}
	if _, ok := ParseTableDatatype(datatype); !ok {
		return nil, ErrNotLGDO.New()
	}

	columns := g.Members()
	for _, column := range columns {
		if hasTmpSuffix(column) {
			return nil, ErrTemporaryName.New(column)
		}
	}

	var (
		names, forms []string
		entries      uint64
		units        = make(map[string]string, len(columns))
	)
	for i, column := range columns {
		ds, err := g.Dataset(column)
		if err != nil {
			return nil, ErrNotColumn.New(column)
		}

		u, _ := ds.StringAttr("units")
		units[column] = u
		ds.RemoveAttr("units")

		form, err := DatatypeToForm(ds.Type)
		if err != nil {
			return nil, err
		}
		names = append(names, column)
		forms = append(forms, form)

		log.Detailf("column %s with units %q", column, u)

		tmp := column + tmpSuffix
		if err := g.Move(column, tmp); err != nil {
			return nil, err
		}
		if _, err := g.CreateGroup(column); err != nil {
			return nil, err
		}
		if err := g.Move(tmp, column+"/pages"); err != nil {
			return nil, err
		}

		if !ds.IsSimple1D() {
			return nil, ErrNotSimple.New(column)
		}
		n := ds.Dims[0]
		if _, err := g.CreateScalarUint(column+"/entries", n); err != nil {
			return nil, err
		}
		if i == 0 {
			entries = n
		} else if n != entries {
			return nil, ErrEntriesMismatch.New(column, entries, n)
		}
		ds.RemoveAttr("datatype")

		c.opts.Metrics.columnDone(c.direction)
	}

	if _, err := g.CreateScalarString("forms", JoinCatalog(forms)); err != nil {
		return nil, err
	}
	if _, err := g.CreateScalarString("names", JoinCatalog(names)); err != nil {
		return nil, err
	}
	if _, err := g.CreateScalarUint("columns", uint64(len(names))); err != nil {
		return nil, err
	}
	if _, err := g.CreateScalarUint("entries", entries); err != nil {
		return nil, err
	}

	return units, nil
}
