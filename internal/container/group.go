package container

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-lh5/hdf5"
	"github.com/robert-malhotra/go-lh5/internal/message"
)

// Kind is the kind of object a member name refers to.
type Kind int

const (
	KindGroup Kind = iota
	KindDataset
	KindSoftLink
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	case KindSoftLink:
		return "soft link"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Group is an in-memory group.
type Group struct {
	Attributes
	members []*member
}

// SoftLink is a soft link member. Target is an absolute path.
type SoftLink struct {
	Target string
}

type member struct {
	name string
	obj  any // *Group, *Dataset or *SoftLink
}

func newGroup() *Group {
	return &Group{}
}

func kindOf(obj any) Kind {
	switch obj.(type) {
	case *Group:
		return KindGroup
	case *Dataset:
		return KindDataset
	default:
		return KindSoftLink
	}
}

// Members returns the names of the immediate members in order.
func (g *Group) Members() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

// Exists reports whether the path names a member of any kind.
func (g *Group) Exists(path string) bool {
	_, err := g.lookup(path)
	return err == nil
}

// ExistsAs reports whether the path names a member of the given kind.
// Soft links are not followed.
func (g *Group) ExistsAs(path string, kind Kind) bool {
	obj, err := g.lookup(path)
	return err == nil && kindOf(obj) == kind
}

// Group returns the subgroup at path.
func (g *Group) Group(path string) (*Group, error) {
	obj, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, hdf5.ErrNotGroup)
	}
	return sub, nil
}

// Dataset returns the dataset at path.
func (g *Group) Dataset(path string) (*Dataset, error) {
	obj, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, hdf5.ErrNotDataset)
	}
	return ds, nil
}

// SoftLink returns the soft link at path.
func (g *Group) SoftLink(path string) (*SoftLink, error) {
	obj, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	l, ok := obj.(*SoftLink)
	if !ok {
		return nil, fmt.Errorf("%s: not a soft link", path)
	}
	return l, nil
}

// CreateGroup creates an empty group at path. The parent must exist.
func (g *Group) CreateGroup(path string) (*Group, error) {
	sub := newGroup()
	if err := g.insert(path, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateDataset creates a dataset from raw element bytes. dims is nil for a
// scalar dataset.
func (g *Group) CreateDataset(path string, dt *message.Datatype, dims []uint64, data []byte) (*Dataset, error) {
	ds := &Dataset{Type: dt, Dims: dims, Data: data}
	if isVarLenString(dt) {
		return nil, fmt.Errorf("%s: use CreateStringDataset for variable-length strings", path)
	}
	if want := uint64(dt.Size) * ds.NumElements(); uint64(len(data)) != want {
		return nil, fmt.Errorf("%s: data size mismatch: expected %d, got %d", path, want, len(data))
	}
	if err := g.insert(path, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateStringDataset creates a variable-length string dataset.
func (g *Group) CreateStringDataset(path string, dims []uint64, values []string) (*Dataset, error) {
	ds := &Dataset{Type: VarLenString(), Dims: dims, Strings: nonNil(values)}
	if uint64(len(values)) != ds.NumElements() {
		return nil, fmt.Errorf("%s: %d values for %d elements", path, len(values), ds.NumElements())
	}
	if err := g.insert(path, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateScalarUint creates a scalar dataset declared as a 64-bit signed
// little-endian integer. The value goes through a 32-bit signed transfer,
// as the ntuple writer does for its row and column counts: values above
// math.MaxInt32 wrap.
func (g *Group) CreateScalarUint(path string, value uint64) (*Dataset, error) {
	stored := int64(int32(value))
	data := make([]byte, 8)
	for i := 0; i < 8; i++ {
		data[i] = byte(uint64(stored) >> (8 * i))
	}
	return g.CreateDataset(path, message.NewFixedPointDatatype(8, true, message.OrderLE), nil, data)
}

// CreateScalarString creates a scalar fixed-length string dataset of
// len(value)+1 bytes. value may contain NUL bytes.
func (g *Group) CreateScalarString(path string, value string) (*Dataset, error) {
	data := make([]byte, len(value)+1)
	copy(data, value)
	dt := message.NewStringDatatype(uint32(len(data)), message.PadNullTerm, message.CharsetASCII)
	return g.CreateDataset(path, dt, nil, data)
}

// CreateSoftLink creates a soft link at path pointing at the absolute path
// target. The target need not exist.
func (g *Group) CreateSoftLink(path, target string) error {
	if !strings.HasPrefix(target, "/") {
		return fmt.Errorf("%s: soft link target %q is not absolute: %w", path, target, hdf5.ErrInvalidPath)
	}
	return g.insert(path, &SoftLink{Target: target})
}

// Move relinks the member at src to dst, both relative to g. The parent of
// dst must exist and dst itself must not.
func (g *Group) Move(src, dst string) error {
	srcParent, srcName, err := g.parentOf(src)
	if err != nil {
		return err
	}
	idx := srcParent.index(srcName)
	if idx < 0 {
		return fmt.Errorf("%s: %w", src, hdf5.ErrNotFound)
	}
	obj := srcParent.members[idx].obj

	if sub, ok := obj.(*Group); ok && sub.contains(g, dst) {
		return fmt.Errorf("moving %s into itself", src)
	}

	dstParent, dstName, err := g.parentOf(dst)
	if err != nil {
		return err
	}
	if dstParent.index(dstName) >= 0 {
		return fmt.Errorf("%s: %w", dst, hdf5.ErrExists)
	}

	srcParent.remove(idx)
	dstParent.add(dstName, obj)
	return nil
}

// Unlink removes the member at path, including everything below it.
func (g *Group) Unlink(path string) error {
	parent, name, err := g.parentOf(path)
	if err != nil {
		return err
	}
	idx := parent.index(name)
	if idx < 0 {
		return fmt.Errorf("%s: %w", path, hdf5.ErrNotFound)
	}
	parent.remove(idx)
	return nil
}

// lookup resolves a relative path without following soft links.
func (g *Group) lookup(path string) (any, error) {
	parts := hdf5.SplitPath(path)
	if len(parts) == 0 {
		return g, nil
	}

	var obj any = g
	for i, name := range parts {
		cur, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%s: %w", strings.Join(parts[:i], "/"), hdf5.ErrNotGroup)
		}
		idx := cur.index(name)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w", path, hdf5.ErrNotFound)
		}
		obj = cur.members[idx].obj
	}
	return obj, nil
}

// parentOf resolves all but the last component of path.
func (g *Group) parentOf(path string) (*Group, string, error) {
	parts := hdf5.SplitPath(path)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%q: %w", path, hdf5.ErrInvalidPath)
	}
	parent, err := g.Group(strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

func (g *Group) insert(path string, obj any) error {
	parent, name, err := g.parentOf(path)
	if err != nil {
		return err
	}
	if parent.index(name) >= 0 {
		return fmt.Errorf("%s: %w", path, hdf5.ErrExists)
	}
	parent.add(name, obj)
	return nil
}

// contains reports whether the path (relative to base) lies inside g.
func (g *Group) contains(base *Group, path string) bool {
	parts := hdf5.SplitPath(path)
	cur := base
	for _, name := range parts[:max(len(parts)-1, 0)] {
		if cur == g {
			return true
		}
		idx := cur.index(name)
		if idx < 0 {
			return false
		}
		next, ok := cur.members[idx].obj.(*Group)
		if !ok {
			return false
		}
		cur = next
	}
	return cur == g
}

func (g *Group) index(name string) int {
	for i, m := range g.members {
		if m.name == name {
			return i
		}
	}
	return -1
}

func (g *Group) add(name string, obj any) {
	g.members = append(g.members, &member{name: name, obj: obj})
}

func (g *Group) remove(idx int) {
	g.members = append(g.members[:idx], g.members[idx+1:]...)
}
