package boxfile

import "errors"

// WalkFunc is called for each object during traversal.
// path is the full path to the object and obj is either *Group or *Column.
// Return nil to continue walking, SkipGroup to skip the remaining members
// of the current group, or any other error to stop.
type WalkFunc func(path string, obj interface{}) error

// SkipGroup can be returned by a WalkFunc called for a group to skip its
// members.
var SkipGroup = errors.New("skip this group")

// Walk visits g and everything below it depth first, in sorted name order.
//
//	boxfile.Walk(f.Root(), func(path string, obj interface{}) error {
//	    switch o := obj.(type) {
//	    case *boxfile.Group:
//	        fmt.Println("group:", path)
//	    case *boxfile.Column:
//	        fmt.Println("column:", path, o.Shape())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	if g.file.closed {
		return ErrClosed
	}
	return walkGroup(g, fn)
}

// Walk visits every group and column in the file.
func (f *File) Walk(fn WalkFunc) error {
	return Walk(f.root, fn)
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		if err == SkipGroup {
			return nil
		}
		return err
	}

	for _, name := range g.Members() {
		if child, ok := g.node.Child(name); ok {
			sub := &Group{file: g.file, path: joinPath(g.path, name), node: child}
			if err := walkGroup(sub, fn); err != nil {
				return err
			}
			continue
		}
		desc, _ := g.node.Column(name)
		col := &Column{file: g.file, path: joinPath(g.path, name), desc: desc}
		if err := fn(col.path, col); err != nil {
			if err == SkipGroup {
				return nil
			}
			return err
		}
	}
	return nil
}
