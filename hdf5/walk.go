package hdf5

import "errors"

// WalkFunc is called for each object during traversal.
// obj is a *Group, a *Dataset, or a Link for soft and external links,
// which are reported and not followed.
// err is any error encountered opening the object.
// Return SkipGroup from a group visit to skip its members, nil to continue,
// or any other error to stop.
type WalkFunc func(path string, obj any, err error) error

// SkipGroup is returned by a WalkFunc to skip the members of a group.
var SkipGroup = errors.New("skip this group")

// Walk traverses the hierarchy below g in storage order, starting with g
// itself.
//
// Example:
//
//	Walk(root, func(path string, obj any, err error) error {
//	    if err != nil {
//	        return err
//	    }
//	    switch o := obj.(type) {
//	    case *Group:
//	        fmt.Println("Group:", path)
//	    case *Dataset:
//	        fmt.Println("Dataset:", path, "shape:", o.Shape())
//	    case Link:
//	        fmt.Println("Link:", path, "->", o.Target)
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}

	links, err := g.Links()
	if err != nil {
		return fn(g.Path(), nil, err)
	}

	for _, l := range links {
		childPath := JoinPath(g.Path(), l.Name)

		switch l.Kind {
		case LinkGroup:
			child, err := g.OpenGroup(l.Name)
			if err != nil {
				err = fn(childPath, nil, err)
			} else {
				err = walkGroup(child, fn)
				if errors.Is(err, SkipGroup) {
					err = nil
				}
			}
			if err != nil {
				return err
			}
		case LinkDataset:
			var obj any
			ds, err := g.OpenDataset(l.Name)
			if err == nil {
				obj = ds
			}
			if err := fn(childPath, obj, err); err != nil {
				return err
			}
		default:
			if err := fn(childPath, l, nil); err != nil {
				return err
			}
		}
	}

	return nil
}
