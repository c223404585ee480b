package boxfile

import (
	"fmt"
	"path"
	"sort"

	"github.com/robert-malhotra/go-boxtree/internal/catalog"
	"github.com/robert-malhotra/go-boxtree/internal/dtype"
)

// Group is a named container of attributes, sub-groups and columns.
type Group struct {
	file *File
	path string
	node *catalog.Group
}

// Name returns the group name (last component of path).
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the full path to this group.
func (g *Group) Path() string {
	return g.path
}

// File returns the file holding the group.
func (g *Group) File() *File {
	return g.file
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	cur := g
	for _, name := range SplitPath(relativePath) {
		child, ok := cur.node.Child(name)
		if !ok {
			if _, isColumn := cur.node.Column(name); isColumn {
				return nil, fmt.Errorf("%w: %s", ErrNotGroup, joinPath(cur.path, name))
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(cur.path, name))
		}
		cur = &Group{file: g.file, path: joinPath(cur.path, name), node: child}
	}
	return cur, nil
}

// OpenColumn opens a column by relative path.
func (g *Group) OpenColumn(relativePath string) (*Column, error) {
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty column path", ErrInvalidPath)
	}
	parent, err := g.OpenGroup(path.Join(parts[:len(parts)-1]...))
	if err != nil {
		return nil, err
	}
	name := parts[len(parts)-1]
	desc, ok := parent.node.Column(name)
	if !ok {
		if _, isGroup := parent.node.Child(name); isGroup {
			return nil, fmt.Errorf("%w: %s", ErrNotColumn, joinPath(parent.path, name))
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(parent.path, name))
	}
	return &Column{file: g.file, path: joinPath(parent.path, name), desc: desc}, nil
}

// Members returns the sorted names of all sub-groups and columns.
func (g *Group) Members() []string {
	return g.node.Members()
}

// Groups returns the sorted names of the sub-groups.
func (g *Group) Groups() []string {
	names := make([]string, 0, len(g.node.Groups))
	for name := range g.node.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the sorted names of the columns.
func (g *Group) Columns() []string {
	names := make([]string, 0, len(g.node.Columns))
	for name := range g.node.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasGroup reports whether a direct sub-group exists.
func (g *Group) HasGroup(name string) bool {
	_, ok := g.node.Child(name)
	return ok
}

// HasColumn reports whether a direct column exists.
func (g *Group) HasColumn(name string) bool {
	_, ok := g.node.Column(name)
	return ok
}

// CreateGroup creates a new subgroup with the given name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if g.node.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(g.path, name))
	}
	return &Group{file: g.file, path: joinPath(g.path, name), node: g.node.AddChild(name)}, nil
}

// CreateColumn creates an empty column of rows holding rowWidth elements of
// type t. Data is stored by Column.Write.
func (g *Group) CreateColumn(name string, t dtype.Type, rowWidth uint64, opts ...ColumnOption) (*Column, error) {
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if rowWidth == 0 {
		return nil, fmt.Errorf("%w: row width must be positive", ErrInvalidShape)
	}
	if g.node.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrExists, joinPath(g.path, name))
	}

	options := defaultColumnOptions()
	for _, opt := range opts {
		opt(options)
	}
	filters := options.filters(t.Size)
	// Validate the pipeline up front so a bad level fails at creation.
	if _, err := newPipeline(filters); err != nil {
		return nil, err
	}

	desc := &catalog.Column{
		Type:      t,
		RowWidth:  rowWidth,
		Addr:      undefinedAddr,
		ChunkRows: options.chunkRows,
		Filters:   filters,
	}
	g.node.AddColumn(name, desc)
	return &Column{file: g.file, path: joinPath(g.path, name), desc: desc}, nil
}

// Attrs returns the sorted attribute names for this group.
func (g *Group) Attrs() []string {
	return g.node.AttrNames()
}

// HasAttr returns true if the group has an attribute with the given name.
func (g *Group) HasAttr(name string) bool {
	_, ok := g.node.Attrs[name]
	return ok
}

// SetAttr creates or replaces an attribute.
// The value can be a string, int, int32, int64, uint32, float64, or a slice
// of string, int, int64 or float64.
func (g *Group) SetAttr(name string, value interface{}) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	a, err := catalog.NewAttr(value)
	if err != nil {
		return err
	}
	g.node.SetAttr(name, a)
	return nil
}

// Attr returns an attribute value.
func (g *Group) Attr(name string) (interface{}, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	a, ok := g.node.Attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, JoinAttrPath(g.path, name))
	}
	return a.Value(), nil
}

// AttrString returns a scalar string attribute.
func (g *Group) AttrString(name string) (string, error) {
	v, err := g.Attr(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attribute %s is %T, not a string", JoinAttrPath(g.path, name), v)
	}
	return s, nil
}
