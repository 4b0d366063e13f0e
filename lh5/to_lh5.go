package lh5

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/robert-malhotra/go-lh5/internal/container"
	"github.com/robert-malhotra/go-lh5/internal/ipc"
	"github.com/robert-malhotra/go-lh5/internal/logging"
)

const (
	headerGroup     = "header"
	histogramsGroup = "default_histograms"
	producerTag     = "exlib"
	schemaVersion   = 1
)

// toLH5 converts every table of the file.
func (c *converter) toLH5() error {
	if err := c.open(); err != nil {
		return err
	}
	root := c.file.Root()

	if !root.ExistsAs(headerGroup, container.KindGroup) || !root.ExistsAs(c.opts.TableGroup, container.KindGroup) {
		reason := fmt.Sprintf("missing %s or %s groups", headerGroup, c.opts.TableGroup)
		return c.log.Log(logging.Fatal, ErrNotRawFile.New(reason).Error())
	}
	header, _ := root.Group(headerGroup)
	if !validHeader(header) {
		return c.log.Log(logging.Fatal, ErrNotRawFile.New("invalid header").Error())
	}
	c.log.Detailf("Opened Geant4 HDF5 file %s", c.path)

	tg, _ := root.Group(c.opts.TableGroup)
	aux := make(map[string]bool, len(c.opts.AuxTables))
	for _, name := range c.opts.AuxTables {
		aux[name] = true
	}
	uids := make(map[string]int, len(c.opts.UIDMap))
	for uid, name := range c.opts.UIDMap {
		uids[name] = uid
	}

	var (
		errs      *multierror.Error
		tables    []string
		auxTables []string
	)
	for _, name := range tg.Members() {
		err := c.tableToLH5(tg, name)
		c.opts.Metrics.tableDone(c.direction, err)
		if isLogicError(err) {
			return err
		}
		if err != nil {
			errs = c.tableFailed(errs, name, err)
		}

		if uid, ok := uids[name]; ok && err == nil {
			target := "/" + c.opts.TableGroup + "/" + name
			if aux[name] {
				target = "/" + name
			}
			if err := c.addLink(tg, uid, target); err != nil {
				errs = c.tableFailed(errs, name, err)
			}
		}

		if aux[name] {
			auxTables = append(auxTables, name)
		} else {
			tables = append(tables, name)
		}
	}

	for _, name := range auxTables {
		if err := root.Move(c.opts.TableGroup+"/"+name, name); err != nil {
			errs = c.tableFailed(errs, name, fmt.Errorf("moving auxiliary table to top level: %w", err))
			continue
		}
		c.log.Detailf("moved auxiliary table %s to top level", name)
	}

	if c.linksGroup != nil {
		tables = append(tables, LinksGroup)
		if err := c.linksGroup.SetStringAttr("datatype", StructDatatype(c.linkNames)); err != nil {
			return err
		}
	}

	if len(tables) == 0 {
		if err := root.Unlink(c.opts.TableGroup); err != nil {
			return err
		}
	} else {
		if !tg.HasAttr("datatype") {
			if err := tg.SetStringAttr("datatype", StructDatatype(tables)); err != nil {
				return err
			}
		}
		tg.RemoveAttr("type")
	}

	if root.ExistsAs(histogramsGroup, container.KindGroup) {
		histos, _ := root.Group(histogramsGroup)
		if len(histos.Members()) == 0 {
			if err := root.Unlink(histogramsGroup); err != nil {
				return err
			}
		} else {
			c.log.Warningf("HDF5 file contains histograms, not yet supported to convert!")
		}
	}

	// without the header the file cannot be converted again
	if err := root.Unlink(headerGroup); err != nil {
		return err
	}

	if err := c.close(); err != nil {
		return err
	}
	c.log.Summaryf("Done updating HDF5 file %s to LH5", c.path)

	return errs.ErrorOrNil()
}

// validHeader checks the producer signature of the header group.
func validHeader(header *container.Group) bool {
	version, ok := header.Int32Attr("data_schema_version")
	if !ok || version != schemaVersion {
		return false
	}
	writer, ok := header.StringAttr("writer")
	return ok && writer == producerTag
}

// addLink adds a soft link to target named after uid, creating the links
// group on first use.
func (c *converter) addLink(tg *container.Group, uid int, target string) error {
	if c.linksGroup == nil {
		g, err := tg.CreateGroup(LinksGroup)
		if err != nil {
			return fmt.Errorf("creating links group: %w", err)
		}
		c.linksGroup = g
		if err := c.opts.Notifier.Send(ipc.LinksGroupName, LinksGroup); err != nil {
			c.log.Warningf("announcing links group: %s", err)
		}
	}

	name := fmt.Sprintf(c.opts.LinkFormat, uid)
	if c.linksGroup.Exists(name) {
		return nil
	}
	if err := c.linksGroup.CreateSoftLink(name, target); err != nil {
		return err
	}
	c.linkNames = append(c.linkNames, name)
	c.log.Detailf("linked %s/%s to %s", LinksGroup, name, target)
	return nil
}

// tableToLH5 converts one raw ntuple group into an LH5 table.
func (c *converter) tableToLH5(tg *container.Group, name string) error {
	log := c.log.WithField("table", name)
	log.Detailf("visiting")

	g, err := tg.Group(name)
	if err != nil {
		return ErrMissingMetadata.Wrap(err)
	}

	if !g.ExistsAs("names", container.KindDataset) ||
		!g.ExistsAs("forms", container.KindDataset) ||
		!g.ExistsAs("columns", container.KindDataset) {
		return ErrMissingMetadata.New()
	}
	if g.HasAttr("datatype") || g.HasAttr("units") {
		return ErrAlreadyConverted.New()
	}

	columnsDs, _ := g.Dataset("columns")
	expected, ok := scalarUint32(columnsDs)
	if !ok {
		return ErrInvalidColumns.New()
	}

	_, names, err := ReadCatalog(g, "names")
	if err != nil {
		return err
	}
	_, forms, err := ReadCatalog(g, "forms")
	if err != nil {
		return err
	}
	if len(names) == 0 || len(forms) == 0 {
		return ErrInvalidCatalog.New("names or forms")
	}
	if len(names) != len(forms) {
		return ErrCatalogMismatch.New(len(names), len(forms))
	}

	if err := g.SetStringAttr("datatype", TableDatatype(names)); err != nil {
		return err
	}

	for _, ds := range []string{"names", "forms", "columns", "entries"} {
		if g.Exists(ds) {
			if err := g.Unlink(ds); err != nil {
				return err
			}
		}
	}
	for _, attr := range []string{"class", "type", "version"} {
		g.RemoveAttr(attr)
	}

	columns := g.Members()
	for _, column := range columns {
		if hasTmpSuffix(column) {
			return ErrTemporaryName.New(column)
		}
	}

	converted := 0
	for _, column := range columns {
		if err := c.columnToLH5(log, g, column, names, forms); err != nil {
			return err
		}
		converted++
	}

	if converted != int(expected) || converted != len(names) {
		return ErrColumnCount.New(converted, expected, len(names))
	}
	return nil
}

// columnToLH5 replaces the column group by its pages dataset.
func (c *converter) columnToLH5(log *logging.Logger, g *container.Group, column string, names, forms []string) error {
	if !g.ExistsAs(column, container.KindGroup) {
		return ErrNotColumn.New(column)
	}

	lgdoName, units, hasUnits := SplitUnits(column)
	log.Detailf("column %s, with units %s", lgdoName, units)

	tmp := column + tmpSuffix
	if err := g.Move(column, tmp); err != nil {
		return err
	}
	if g.Exists(lgdoName) {
		return ErrNameCollision.New(lgdoName)
	}

	if g.ExistsAs(tmp+"/pages", container.KindDataset) {
		if err := g.Move(tmp+"/pages", lgdoName); err != nil {
			return err
		}
	} else {
		form, ok := formOf(column, names, forms)
		if !ok {
			return ErrUnknownColumn.New(column)
		}
		log.Warningf("column %s - no data, creating with type %s", lgdoName, form)
		if err := createEmptyColumn(g, lgdoName, form); err != nil {
			return err
		}
		c.opts.Metrics.emptyColumn()
	}
	if err := g.Unlink(tmp); err != nil {
		return err
	}

	ds, err := g.Dataset(lgdoName)
	if err != nil {
		return err
	}
	if hasUnits {
		if err := ds.SetStringAttr("units", units); err != nil {
			return err
		}
	}

	class, err := DatatypeToLGDO(ds.Type)
	if err != nil {
		return err
	}
	if err := ds.SetStringAttr("datatype", ArrayDatatype(class)); err != nil {
		return err
	}

	c.opts.Metrics.columnDone(c.direction)
	return nil
}

func formOf(column string, names, forms []string) (string, bool) {
	for i, n := range names {
		if n == column {
			return forms[i], true
		}
	}
	return "", false
}

// createEmptyColumn creates a zero-length column of the given form.
func createEmptyColumn(g *container.Group, name, form string) error {
	dt, err := FormToDatatype(form)
	if err != nil {
		return err
	}
	if form == FormString {
		_, err = g.CreateStringDataset(name, []uint64{0}, nil)
	} else {
		_, err = g.CreateDataset(name, dt, []uint64{0}, nil)
	}
	return err
}
