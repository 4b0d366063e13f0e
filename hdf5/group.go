package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-lh5/internal/binary"
	"github.com/robert-malhotra/go-lh5/internal/btree"
	"github.com/robert-malhotra/go-lh5/internal/heap"
	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/robert-malhotra/go-lh5/internal/object"
)

// Group is an HDF5 group. Groups of a file from Create have no header
// until the file is closed and can only be written to.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	children []*member
	attrs    []*pendingAttr
}

// LinkKind identifies what a group member link points at.
type LinkKind int

const (
	LinkGroup LinkKind = iota
	LinkDataset
	LinkSoft
	LinkExternal
)

func (k LinkKind) String() string {
	switch k {
	case LinkGroup:
		return "group"
	case LinkDataset:
		return "dataset"
	case LinkSoft:
		return "soft link"
	case LinkExternal:
		return "external link"
	}
	return fmt.Sprintf("LinkKind(%d)", int(k))
}

// Link describes one member of a group without following soft links.
type Link struct {
	Name string
	Kind LinkKind
	// Target is the path of a soft link and "file:path" for an external one.
	Target string
}

type linkResolution struct {
	address   uint64
	isDataset bool
}

// entry is a member as stored, in link messages or an old-style symbol
// table.
type entry struct {
	name    string
	kind    message.LinkType
	address uint64
	target  string
}

// Name returns the last component of the group path.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the absolute path of the group.
func (g *Group) Path() string {
	return g.path
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relPath string) (*Group, error) {
	obj, err := g.open(relPath)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relPath, ErrNotGroup)
	}
	return sub, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relPath string) (*Dataset, error) {
	obj, err := g.open(relPath)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relPath, ErrNotDataset)
	}
	return ds, nil
}

// open resolves a relative path, following soft links.
func (g *Group) open(relPath string) (any, error) {
	if g.header == nil {
		return nil, fmt.Errorf("opening %q in a group being written: %w", relPath, ErrUnsupported)
	}
	parts := SplitPath(relPath)
	if len(parts) == 0 {
		return g, nil
	}

	cur := g
	visited := make(map[string]bool)
	for i, name := range parts {
		res, err := cur.findChild(name, visited)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", JoinPath(cur.path, name), err)
		}
		full := JoinPath(cur.path, name)
		if i == len(parts)-1 {
			if res.isDataset {
				return g.file.openDatasetAt(res.address, full)
			}
			return g.file.openGroupAt(res.address, full)
		}
		if res.isDataset {
			return nil, fmt.Errorf("%s: %w", full, ErrNotGroup)
		}
		if cur, err = g.file.openGroupAt(res.address, full); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (g *Group) findChild(name string, visited map[string]bool) (*linkResolution, error) {
	entries, err := g.entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.name != name {
			continue
		}
		switch e.kind {
		case message.LinkHard:
			isDataset, err := g.isDataset(e.address)
			if err != nil {
				return nil, err
			}
			return &linkResolution{address: e.address, isDataset: isDataset}, nil
		case message.LinkSoft:
			if len(visited) >= MaxLinkDepth {
				return nil, ErrLinkDepth
			}
			if visited[e.target] {
				return nil, fmt.Errorf("soft link cycle through %s: %w", e.target, ErrLinkDepth)
			}
			visited[e.target] = true
			return g.file.resolve(e.target, visited)
		default:
			return nil, fmt.Errorf("external link %q: %w", name, ErrUnsupported)
		}
	}
	return nil, ErrNotFound
}

// entries returns the stored members in storage order: link message order
// for new-style groups and name order for symbol tables.
func (g *Group) entries() ([]entry, error) {
	if li := g.header.LinkInfo(); li != nil && li.Dense() {
		return nil, fmt.Errorf("group %s: dense link storage: %w", g.path, ErrUnsupported)
	}

	var out []entry
	for _, l := range g.header.Links() {
		e := entry{name: l.Name, kind: l.Kind, address: l.Address, target: l.Target}
		if l.Kind == message.LinkExternal {
			e.target = l.File + ":" + l.Path
		}
		out = append(out, e)
	}
	if len(out) > 0 {
		return out, nil
	}

	st := g.symbolTable()
	if st == nil {
		return nil, nil
	}
	names, err := heap.ReadLocal(g.file.src, st.Heap)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	syms, err := btree.ReadGroup(g.file.src, st.BTree, names)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", g.path, err)
	}
	for _, s := range syms {
		e := entry{name: s.Name, kind: message.LinkHard, address: s.Address}
		if s.IsSoftLink() {
			e.kind, e.target = message.LinkSoft, s.Target
		}
		out = append(out, e)
	}
	return out, nil
}

// symbolTable returns the symbol table of an old-style group. The root group
// of early files may only have it cached in the superblock.
func (g *Group) symbolTable() *message.SymbolTable {
	if st := g.header.SymbolTable(); st != nil {
		return st
	}
	sb := g.file.superblock
	if g.addr == sb.RootAddress && sb.RootBTree != binary.Undefined && sb.RootBTree != 0 {
		return &message.SymbolTable{BTree: sb.RootBTree, Heap: sb.RootHeap}
	}
	return nil
}

func (g *Group) isDataset(addr uint64) (bool, error) {
	h, err := object.Read(g.file.src, addr)
	if err != nil {
		return false, err
	}
	return h.IsDataset(), nil
}

// Members returns the member names in storage order.
func (g *Group) Members() ([]string, error) {
	if g.header == nil {
		names := make([]string, len(g.children))
		for i, c := range g.children {
			names[i] = c.name
		}
		return names, nil
	}

	entries, err := g.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names, nil
}

// Links returns the members in storage order. Hard links are classified as
// group or dataset. Soft and external links are reported, not followed.
func (g *Group) Links() ([]Link, error) {
	if g.header == nil {
		return nil, fmt.Errorf("listing links of a group being written: %w", ErrUnsupported)
	}
	entries, err := g.entries()
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(entries))
	for _, e := range entries {
		l := Link{Name: e.name, Target: e.target}
		switch e.kind {
		case message.LinkHard:
			isDataset, err := g.isDataset(e.address)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", e.name, err)
			}
			l.Kind = LinkGroup
			if isDataset {
				l.Kind = LinkDataset
			}
		case message.LinkSoft:
			l.Kind = LinkSoft
		default:
			l.Kind = LinkExternal
		}
		links = append(links, l)
	}
	return links, nil
}

// Attrs returns the attribute names in header order.
func (g *Group) Attrs() []string {
	return attrNames(g.header)
}

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	return findAttr(g.file, g.header, name)
}

// HasAttr reports whether the group has the named attribute.
func (g *Group) HasAttr(name string) bool {
	return g.Attr(name) != nil
}

func attrNames(h *object.Header) []string {
	if h == nil {
		return nil
	}
	var names []string
	for _, a := range h.Attributes() {
		names = append(names, a.Name)
	}
	return names
}

func findAttr(f *File, h *object.Header, name string) *Attribute {
	if h == nil {
		return nil
	}
	for _, a := range h.Attributes() {
		if a.Name == name {
			return &Attribute{msg: a, heap: f.globals}
		}
	}
	return nil
}
