package hdf5

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-lh5/internal/message"
	"github.com/robert-malhotra/go-lh5/internal/object"
)

// member is a child of a group being written: a group, a dataset or a soft
// link target.
type member struct {
	name    string
	group   *Group
	dataset *Dataset
	soft    string
}

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}

	child := &Group{
		file: g.file,
		path: JoinPath(g.path, name),
	}
	g.children = append(g.children, &member{name: name, group: child})
	return child, nil
}

// CreateSoftLink creates a soft link named name pointing at the absolute
// path target. The target does not need to exist.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := g.checkNewMember(name); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("soft link %q: empty target: %w", name, ErrInvalidPath)
	}

	g.children = append(g.children, &member{name: name, soft: target})
	return nil
}

// SetAttr adds an attribute with a value inferred from its Go type.
// Strings are stored as fixed-length, NUL-terminated strings.
func (g *Group) SetAttr(name string, value any) error {
	return g.addAttr(name, func() (*pendingAttr, error) {
		return valueAttr(name, value)
	})
}

// SetStringAttr adds a scalar variable-length string attribute.
func (g *Group) SetStringAttr(name, value string) error {
	return g.SetStringsAttr(name, nil, []string{value})
}

// SetStringsAttr adds a variable-length string attribute with the given
// dimensions (nil for a scalar).
func (g *Group) SetStringsAttr(name string, dims []uint64, values []string) error {
	return g.addAttr(name, func() (*pendingAttr, error) {
		return g.file.stringsAttr(name, dims, values)
	})
}

// SetAttrRaw adds an attribute from an explicit datatype and raw element bytes.
func (g *Group) SetAttrRaw(name string, dt *message.Datatype, dims []uint64, data []byte) error {
	return g.addAttr(name, func() (*pendingAttr, error) {
		return rawAttr(name, dt, dims, data)
	})
}

func (g *Group) addAttr(name string, build func() (*pendingAttr, error)) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	attrs, err := appendAttr(g.attrs, name, build)
	if err != nil {
		return err
	}
	g.attrs = attrs
	return nil
}

func (g *Group) checkNewMember(name string) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("member name %q: %w", name, ErrInvalidPath)
	}
	for _, c := range g.children {
		if c.name == name {
			return fmt.Errorf("%s: %w", JoinPath(g.path, name), ErrExists)
		}
	}
	return nil
}

// finalize writes the headers of all children, then this group's own header.
func (g *Group) finalize() (uint64, error) {
	links := make([]*message.Link, 0, len(g.children))
	for _, c := range g.children {
		switch {
		case c.group != nil:
			addr, err := c.group.finalize()
			if err != nil {
				return 0, err
			}
			links = append(links, message.NewHardLink(c.name, addr))
		case c.dataset != nil:
			addr, err := c.dataset.finalize()
			if err != nil {
				return 0, err
			}
			links = append(links, message.NewHardLink(c.name, addr))
		default:
			links = append(links, message.NewSoftLink(c.name, c.soft))
		}
	}

	msgs := append(object.GroupMessages(links), attrMessages(g.attrs)...)

	addr, err := g.file.writeHeader(msgs, object.MinGroupChunkSize)
	if err != nil {
		return 0, fmt.Errorf("writing group %s: %w", g.path, err)
	}
	g.addr = addr
	return addr, nil
}
