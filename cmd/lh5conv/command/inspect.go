package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

const (
	InspectDescription = "Print the structure of HDF5 files"
	InspectHelp        = InspectDescription + "\n\n" +
		"Lists groups, datasets with their shapes, types and chunk filters,\n" +
		"soft links and attribute values."
)

// Inspect represents the `inspect` command.
type Inspect struct {
	NoAttrs bool `long:"no-attrs" description:"Do not print attributes"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1" description:"HDF5 files"`
	} `positional-args:"yes" required:"yes"`

	out io.Writer
}

// Execute prints every input file, it honors the go-flags.Commander
// interface.
func (c *Inspect) Execute(args []string) error {
	if c.out == nil {
		c.out = os.Stdout
	}

	for _, file := range c.Args.Files {
		if err := c.inspect(file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func (c *Inspect) inspect(file string) error {
	f, err := hdf5.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(c.out, "=== %s (superblock v%d) ===\n", file, f.Version())

	return hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
		indent := strings.Repeat("  ", depth(path))
		if err != nil {
			fmt.Fprintf(c.out, "%s%s: ERROR %v\n", indent, path, err)
			return nil
		}

		switch o := obj.(type) {
		case *hdf5.Group:
			fmt.Fprintf(c.out, "%s%s/\n", indent, o.Name())
			c.attrs(indent, o.Attrs(), o.Attr)
		case *hdf5.Dataset:
			fmt.Fprintf(c.out, "%s%s %s %v%s\n", indent, o.Name(), typeName(o.Datatype()), shape(o), storage(o))
			c.attrs(indent, o.Attrs(), o.Attr)
		case hdf5.Link:
			fmt.Fprintf(c.out, "%s%s -> %s (%s)\n", indent, o.Name, o.Target, o.Kind)
		}
		return nil
	})
}

func (c *Inspect) attrs(indent string, names []string, get func(string) *hdf5.Attribute) {
	if c.NoAttrs {
		return
	}
	for _, name := range names {
		v, err := get(name).Value()
		if err != nil {
			fmt.Fprintf(c.out, "%s  @%s: ERROR %v\n", indent, name, err)
			continue
		}
		fmt.Fprintf(c.out, "%s  @%s = %q\n", indent, name, fmt.Sprint(v))
	}
}

func depth(path string) int {
	return len(hdf5.SplitPath(path))
}

func shape(d *hdf5.Dataset) string {
	if d.IsScalar() {
		return "scalar"
	}
	return fmt.Sprint(d.Shape())
}

// storage describes chunked datasets and their filters, nothing otherwise.
func storage(d *hdf5.Dataset) string {
	if d.StorageClass() != message.LayoutChunked {
		return ""
	}
	return " chunked(" + strings.Join(d.Filters(), "+") + ")"
}

func typeName(dt *message.Datatype) string {
	switch {
	case dt == nil:
		return "?"
	case dt.IsVarLen() && dt.IsVarLenString:
		return "vlen-string"
	case dt.Class == message.ClassString:
		return fmt.Sprintf("string[%d]", dt.Size)
	case dt.Class == message.ClassFixedPoint && dt.Signed:
		return fmt.Sprintf("int%d", dt.Size*8)
	case dt.Class == message.ClassFixedPoint:
		return fmt.Sprintf("uint%d", dt.Size*8)
	case dt.Class == message.ClassFloatPoint:
		return fmt.Sprintf("float%d", dt.Size*8)
	}
	return fmt.Sprintf("class%d[%d]", dt.Class, dt.Size)
}
