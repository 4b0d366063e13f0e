package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/go-lh5/hdf5"
)

// File is an in-memory snapshot of an HDF5 file.
type File struct {
	path    string
	root    *Group
	storage StorageFunc
}

// StorageFunc returns the creation options of a dataset when the snapshot
// is saved, such as chunking and compression. Scalar and empty datasets
// are always stored contiguously.
type StorageFunc func(path string, ds *Dataset) []hdf5.DatasetOption

// New returns an empty snapshot that will be saved to path.
func New(path string) *File {
	return &File{path: path, root: newGroup()}
}

// Load reads the complete file at path into memory.
func Load(path string) (*File, error) {
	hf, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	defer hf.Close()

	root := newGroup()
	if err := loadGroup(hf.Root(), root); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return &File{path: path, root: root}, nil
}

// Path returns the path the file was loaded from.
func (f *File) Path() string {
	return f.path
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// SetStorage sets how datasets are laid out by Save and SaveAs. A nil fn
// stores every dataset contiguously.
func (f *File) SetStorage(fn StorageFunc) {
	f.storage = fn
}

// Save writes the snapshot over the file it was loaded from. The data is
// written to a temporary file in the same directory first and renamed into
// place, so the original stays intact if writing fails.
func (f *File) Save() error {
	dir, base := filepath.Split(f.path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// SaveAs writes the snapshot to path, replacing any existing file.
func (f *File) SaveAs(path string) error {
	hf, err := hdf5.Create(path)
	if err != nil {
		return err
	}

	if err := f.saveGroup(f.root, hf.Root()); err != nil {
		hf.Close()
		return fmt.Errorf("saving %s: %w", path, err)
	}

	return hf.Close()
}

func loadGroup(src *hdf5.Group, dst *Group) error {
	for _, name := range src.Attrs() {
		a, err := loadAttr(src.Attr(name))
		if err != nil {
			return fmt.Errorf("%s: %w", src.Path(), err)
		}
		dst.list = append(dst.list, a)
	}

	links, err := src.Links()
	if err != nil {
		return fmt.Errorf("%s: %w", src.Path(), err)
	}

	for _, l := range links {
		switch l.Kind {
		case hdf5.LinkGroup:
			sub, err := src.OpenGroup(l.Name)
			if err != nil {
				return err
			}
			child := newGroup()
			if err := loadGroup(sub, child); err != nil {
				return err
			}
			dst.add(l.Name, child)
		case hdf5.LinkDataset:
			ds, err := src.OpenDataset(l.Name)
			if err != nil {
				return err
			}
			child, err := loadDataset(ds)
			if err != nil {
				return fmt.Errorf("%s: %w", ds.Path(), err)
			}
			dst.add(l.Name, child)
		case hdf5.LinkSoft:
			dst.add(l.Name, &SoftLink{Target: l.Target})
		default:
			return fmt.Errorf("%s: %s %q: %w", src.Path(), l.Kind, l.Name, hdf5.ErrUnsupported)
		}
	}
	return nil
}

func loadDataset(src *hdf5.Dataset) (*Dataset, error) {
	ds := &Dataset{Type: src.Datatype()}
	if !src.IsScalar() {
		ds.Dims = append([]uint64{}, src.Shape()...)
	}

	switch {
	case isVarLenString(ds.Type):
		values, err := src.ReadString()
		if err != nil {
			return nil, err
		}
		ds.Strings = nonNil(values)
	case ds.Type.IsVarLen():
		return nil, fmt.Errorf("variable-length sequences: %w", hdf5.ErrUnsupported)
	default:
		data, err := src.ReadRaw()
		if err != nil {
			return nil, err
		}
		ds.Data = data
	}

	for _, name := range src.Attrs() {
		a, err := loadAttr(src.Attr(name))
		if err != nil {
			return nil, err
		}
		ds.list = append(ds.list, a)
	}
	return ds, nil
}

func loadAttr(src *hdf5.Attribute) (*Attr, error) {
	a := &Attr{Name: src.Name(), Type: src.Datatype()}
	if !src.IsScalar() {
		a.Dims = append([]uint64{}, src.Shape()...)
	}

	switch {
	case a.Type == nil:
		return nil, fmt.Errorf("attribute %q has no datatype", a.Name)
	case isVarLenString(a.Type):
		values, err := src.ReadString()
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		a.Strings = nonNil(values)
	case a.Type.IsVarLen():
		return nil, fmt.Errorf("attribute %q: variable-length sequences: %w", a.Name, hdf5.ErrUnsupported)
	default:
		a.Data = src.RawData()
	}
	return a, nil
}

func (f *File) saveGroup(src *Group, dst *hdf5.Group) error {
	for _, a := range src.list {
		var err error
		if a.IsVarLenString() {
			err = dst.SetStringsAttr(a.Name, a.Dims, a.Strings)
		} else {
			err = dst.SetAttrRaw(a.Name, a.Type, a.Dims, a.Data)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", dst.Path(), err)
		}
	}

	for _, m := range src.members {
		switch obj := m.obj.(type) {
		case *Group:
			child, err := dst.CreateGroup(m.name)
			if err != nil {
				return err
			}
			if err := f.saveGroup(obj, child); err != nil {
				return err
			}
		case *Dataset:
			if err := f.saveDataset(obj, dst, m.name); err != nil {
				return err
			}
		case *SoftLink:
			if err := dst.CreateSoftLink(m.name, obj.Target); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *File) saveDataset(src *Dataset, parent *hdf5.Group, name string) error {
	path := hdf5.JoinPath(parent.Path(), name)

	var opts []hdf5.DatasetOption
	if f.storage != nil && !src.IsScalar() && src.NumElements() > 0 {
		opts = f.storage(path, src)
	}

	var (
		ds  *hdf5.Dataset
		err error
	)
	if src.IsVarLenString() {
		ds, err = parent.CreateStringDataset(name, src.Dims, src.Strings, opts...)
	} else {
		ds, err = parent.CreateDatasetRaw(name, src.Type, src.Dims, src.Data, opts...)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for _, a := range src.list {
		if a.IsVarLenString() {
			err = ds.SetStringsAttr(a.Name, a.Dims, a.Strings)
		} else {
			err = ds.SetAttrRaw(a.Name, a.Type, a.Dims, a.Data)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", ds.Path(), err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
