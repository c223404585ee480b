// Package catalog holds the metadata tree of a box container: groups,
// attributes and column descriptors, plus the allocator free list.
//
// The catalog is encoded as deterministic CBOR so identical trees produce
// identical bytes, framed by a magic prefix and a lookup3 checksum trailer.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/robert-malhotra/go-boxtree/internal/alloc"
	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
	"github.com/robert-malhotra/go-boxtree/internal/dtype"
	"github.com/robert-malhotra/go-boxtree/internal/filter"
)

// Magic prefixes every encoded catalog.
var Magic = []byte{'B', 'X', 'C', 'T'}

// FormatVersion is the catalog schema version.
const FormatVersion = 1

// headerSize covers the magic and the body length.
const headerSize = 8

var (
	ErrBadMagic = errors.New("catalog magic not found")
	ErrChecksum = errors.New("catalog checksum mismatch")
)

// Catalog is the root of the metadata tree.
type Catalog struct {
	Version int               `cbor:"1,keyasint"`
	Root    *Group            `cbor:"2,keyasint"`
	Free    []alloc.FreeBlock `cbor:"3,keyasint,omitempty"`
}

// Group is a named container of attributes, sub-groups and columns.
type Group struct {
	Attrs   map[string]Attr    `cbor:"1,keyasint,omitempty"`
	Groups  map[string]*Group  `cbor:"2,keyasint,omitempty"`
	Columns map[string]*Column `cbor:"3,keyasint,omitempty"`
}

// Column describes a resizable two-dimensional array stored as one
// contiguous extent.
type Column struct {
	Type      dtype.Type    `cbor:"1,keyasint"`
	RowWidth  uint64        `cbor:"2,keyasint"`
	Rows      uint64        `cbor:"3,keyasint"`
	Addr      uint64        `cbor:"4,keyasint"`
	Capacity  uint64        `cbor:"5,keyasint"`
	Stored    uint64        `cbor:"6,keyasint"`
	Checksum  uint32        `cbor:"7,keyasint"`
	ChunkRows uint64        `cbor:"8,keyasint"`
	Filters   []filter.Spec `cbor:"9,keyasint,omitempty"`
}

// Elements returns the number of stored elements.
func (c *Column) Elements() uint64 {
	return c.Rows * c.RowWidth
}

// RawSize returns the unfiltered payload size in bytes.
func (c *Column) RawSize() uint64 {
	return c.Elements() * uint64(c.Type.Size)
}

// New returns an empty catalog with a root group.
func New() *Catalog {
	return &Catalog{Version: FormatVersion, Root: NewGroup()}
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{}
}

// Child returns a direct sub-group.
func (g *Group) Child(name string) (*Group, bool) {
	c, ok := g.Groups[name]
	return c, ok
}

// AddChild adds and returns an empty sub-group.
func (g *Group) AddChild(name string) *Group {
	if g.Groups == nil {
		g.Groups = make(map[string]*Group)
	}
	c := NewGroup()
	g.Groups[name] = c
	return c
}

// Column returns a direct column.
func (g *Group) Column(name string) (*Column, bool) {
	c, ok := g.Columns[name]
	return c, ok
}

// AddColumn stores a column descriptor.
func (g *Group) AddColumn(name string, c *Column) {
	if g.Columns == nil {
		g.Columns = make(map[string]*Column)
	}
	g.Columns[name] = c
}

// SetAttr stores an attribute.
func (g *Group) SetAttr(name string, a Attr) {
	if g.Attrs == nil {
		g.Attrs = make(map[string]Attr)
	}
	g.Attrs[name] = a
}

// Has reports whether name is used by a group or a column.
func (g *Group) Has(name string) bool {
	_, isGroup := g.Groups[name]
	_, isColumn := g.Columns[name]
	return isGroup || isColumn
}

// Members returns the sorted names of sub-groups and columns.
func (g *Group) Members() []string {
	names := make([]string, 0, len(g.Groups)+len(g.Columns))
	for name := range g.Groups {
		names = append(names, name)
	}
	for name := range g.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AttrNames returns the sorted attribute names.
func (g *Group) AttrNames() []string {
	names := make([]string, 0, len(g.Attrs))
	for name := range g.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a slash separated path of group names below g.
func (g *Group) Lookup(parts []string) (*Group, bool) {
	cur := g
	for _, p := range parts {
		next, ok := cur.Child(p)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Encode serializes the catalog as magic, body length (uint32),
// deterministic CBOR body and a lookup3 checksum of everything before it.
func Encode(c *Catalog) ([]byte, error) {
	body, err := encMode.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	out := make([]byte, 0, headerSize+len(body)+4)
	out = append(out, Magic...)
	out = binpkg.Order.AppendUint32(out, uint32(len(body)))
	out = append(out, body...)
	return binpkg.Order.AppendUint32(out, binpkg.Lookup3Checksum(out)), nil
}

// Decode parses and verifies an encoded catalog. Bytes after the checksum
// are ignored, so a catalog may be read from a padded extent.
func Decode(data []byte) (*Catalog, error) {
	if len(data) < headerSize+4 || !bytes.Equal(data[:len(Magic)], Magic) {
		return nil, ErrBadMagic
	}
	bodyLen := int(binpkg.Order.Uint32(data[len(Magic):]))
	end := headerSize + bodyLen
	if end+4 > len(data) {
		return nil, fmt.Errorf("%w: body length %d exceeds extent", ErrChecksum, bodyLen)
	}
	if !binpkg.VerifyLookup3(data[:end], binpkg.Order.Uint32(data[end:])) {
		return nil, ErrChecksum
	}
	var c Catalog
	if err := cbor.Unmarshal(data[headerSize:end], &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if c.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported catalog version %d", c.Version)
	}
	if c.Root == nil {
		c.Root = NewGroup()
	}
	return &c, nil
}
