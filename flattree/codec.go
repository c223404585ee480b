package flattree

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/diskstore"
	"github.com/robert-malhotra/go-boxtree/logger"
	"github.com/robert-malhotra/go-boxtree/mdbox"
	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// DefaultVolumeTolerance is the relative difference between a stored and a
// recomputed inverse volume above which the stored value is replaced.
const DefaultVolumeTolerance = 1e-4

// Codec encodes, decodes, persists and restores flat trees.
type Codec struct {
	log        logger.Logger
	eventType  string
	tolerance  float64
	columnOpts []boxfile.ColumnOption
	group      string
}

// Option configures a Codec.
type Option func(*Codec)

// WithEventType sets the event type recorded with persisted trees.
func WithEventType(t string) Option {
	return func(c *Codec) { c.eventType = t }
}

// WithVolumeTolerance sets the relative inverse-volume tolerance.
func WithVolumeTolerance(tol float64) Option {
	return func(c *Codec) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}

// WithColumnOptions sets the options used when columns are created.
func WithColumnOptions(opts ...boxfile.ColumnOption) Option {
	return func(c *Codec) { c.columnOpts = append(c.columnOpts, opts...) }
}

// WithGroupName sets the name of the box structure group.
func WithGroupName(name string) Option {
	return func(c *Codec) { c.group = name }
}

// New returns a codec logging to log. A nil log discards messages.
func New(log logger.Logger, opts ...Option) *Codec {
	if log == nil {
		log = logger.Nop()
	}
	c := &Codec{
		log:       log,
		eventType: diskstore.LeanEventType,
		tolerance: DefaultVolumeTolerance,
		group:     DefaultGroupName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EventType returns the event type the codec records and expects.
func (c *Codec) EventType() string { return c.eventType }

// Encode builds the flat tree of nodes, which must be indexed by id with
// every internal box viewing its children in nodes. Leaves without a file
// position are given one after the furthest assigned range.
func (c *Codec) Encode(nodes []mdbox.Node, dims int, descriptor string) (*FlatTree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no boxes to encode", mderrors.ErrFormat)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("%w: %d dimensions", mderrors.ErrFormat, dims)
	}
	if err := mdbox.ValidatePartition(nodes); err != nil {
		return nil, err
	}

	n := len(nodes)
	ft := &FlatTree{
		BoxType:              make([]int32, n),
		Depth:                make([]int32, n),
		InverseVolume:        make([]float64, n),
		Extents:              make([]float64, 0, n*dims*2),
		BoxChildren:          make([]int64, 2*n),
		SignalErrorSq:        make([]float64, 2*n),
		EventIndex:           make([]uint64, 2*n),
		Dims:                 dims,
		ControllerDescriptor: descriptor,
		EventType:            c.eventType,
	}

	missing := 0
	for i, node := range nodes {
		if node.Dims() != dims {
			return nil, fmt.Errorf("%w: box %d has %d dimensions, tree has %d",
				mderrors.ErrFormat, i, node.Dims(), dims)
		}
		ft.BoxType[i] = int32(node.Kind())
		ft.Depth[i] = int32(node.Depth())
		ft.InverseVolume[i] = node.InverseVolume()
		for _, e := range node.Extents() {
			ft.Extents = append(ft.Extents, e.Min, e.Max)
		}
		ft.SignalErrorSq[2*i] = node.Signal()
		ft.SignalErrorSq[2*i+1] = node.ErrorSquared()

		switch box := node.(type) {
		case *mdbox.Internal:
			first, last := box.ChildRange()
			ft.BoxChildren[2*i] = int64(first)
			ft.BoxChildren[2*i+1] = int64(last)
		case *mdbox.Leaf:
			pos, count := box.FileRange()
			if !box.IsFileBacked() {
				pos = UndefinedPosition
				missing++
			}
			ft.EventIndex[2*i] = pos
			ft.EventIndex[2*i+1] = count
		default:
			return nil, fmt.Errorf("%w: box %d has unsupported kind %v", mderrors.ErrFormat, i, node.Kind())
		}
	}

	if missing > 0 {
		end := AssignSequentialFilePositions(ft)
		c.log.Infof("assigned file positions to %d of %d leaves, events end at %d", missing, len(ft.LeafRanges()), end)
	}
	return ft, nil
}

// RelayoutFilePositions renumbers every leaf so the ranges are packed in id
// order starting at zero, and returns the total. When store is not nil,
// nodes must be the boxes ft was encoded from and each leaf's events are
// written to its new range.
func RelayoutFilePositions(ft *FlatTree, nodes []mdbox.Node, store mdbox.RecordStore) (uint64, error) {
	if store != nil && len(nodes) != ft.NumBoxes() {
		return 0, fmt.Errorf("%w: %d boxes for a flat tree of %d", mderrors.ErrFormat, len(nodes), ft.NumBoxes())
	}
	var leaves []*mdbox.Leaf
	if store != nil {
		// New ranges may overlap old ones, so every leaf is read before any
		// is written.
		leaves = make([]*mdbox.Leaf, len(nodes))
		for i, k := range ft.BoxType {
			if mdbox.Kind(k) != mdbox.KindLeaf {
				continue
			}
			leaf, ok := nodes[i].(*mdbox.Leaf)
			if !ok {
				return 0, fmt.Errorf("%w: box %d is not a leaf", mderrors.ErrFormat, i)
			}
			if !leaf.InMemory() {
				if _, err := leaf.Events(); err != nil {
					return 0, err
				}
			}
			leaves[i] = leaf
		}
	}

	var next uint64
	for i, k := range ft.BoxType {
		if mdbox.Kind(k) != mdbox.KindLeaf {
			continue
		}
		count := ft.EventIndex[2*i+1]
		ft.EventIndex[2*i] = next
		if store != nil {
			if err := leaves[i].SetFileBacked(store, next, count, false); err != nil {
				return 0, err
			}
		}
		next += count
	}
	return next, nil
}

// DecodeOptions selects how leaves are rebuilt.
type DecodeOptions struct {
	// FileBacked leaves keep only their range and load events from Store
	// on demand.
	FileBacked bool
	// StructureOnly rebuilds the topology only. Leaves keep their range but
	// no store, so their events cannot be loaded.
	StructureOnly bool
	// Store holds the leaf events. Without a store leaves carry only their
	// addressing.
	Store mdbox.RecordStore
}

// Decode rebuilds the boxes of ft, indexed by id, and returns them with the
// total event count of the leaves. No boxes are returned on error.
func (c *Codec) Decode(ft *FlatTree, opts DecodeOptions) ([]mdbox.Node, uint64, error) {
	if ft.IndexOnly {
		return nil, 0, fmt.Errorf("%w: an index-only flat tree has no box structure", mderrors.ErrFormat)
	}
	if err := checkColumns(ft); err != nil {
		return nil, 0, err
	}

	n, dims := ft.NumBoxes(), ft.Dims
	nodes := make([]mdbox.Node, n)
	var total uint64
	var err error
	for i := 0; i < n; i++ {
		extents := make([]mdbox.Extent, dims)
		row := ft.Extents[i*dims*2 : (i+1)*dims*2]
		for d := range extents {
			extents[d] = mdbox.Extent{Min: row[2*d], Max: row[2*d+1]}
		}
		depth := int(ft.Depth[i])

		var node mdbox.Node
		switch kind := mdbox.Kind(ft.BoxType[i]); kind {
		case mdbox.KindLeaf:
			leaf := mdbox.NewLeaf(depth, extents)
			pos, count := ft.EventIndex[2*i], ft.EventIndex[2*i+1]
			total += count
			switch {
			case opts.StructureOnly || opts.Store == nil:
				err = leaf.SetFileBacked(nil, pos, count, true)
			case opts.FileBacked:
				err = leaf.SetFileBacked(opts.Store, pos, count, true)
			}
			if err != nil {
				return nil, 0, err
			}
			node = leaf
		case mdbox.KindInternal:
			node = mdbox.NewInternal(depth, extents)
		default:
			return nil, 0, fmt.Errorf("%w: box %d has kind %v", mderrors.ErrFormat, i, kind)
		}
		node.SetID(i)
		nodes[i] = node
	}

	for i, node := range nodes {
		if in, ok := node.(*mdbox.Internal); ok {
			first, last := ft.BoxChildren[2*i], ft.BoxChildren[2*i+1]
			if err := in.SetChildren(nodes, int(first), int(last)); err != nil {
				return nil, 0, err
			}
		}
	}
	if err := mdbox.ValidatePartition(nodes); err != nil {
		return nil, 0, err
	}

	if !opts.FileBacked && !opts.StructureOnly && opts.Store != nil {
		if err := c.materialize(ft, nodes, opts.Store); err != nil {
			return nil, 0, err
		}
	}

	corrected := 0
	for i, node := range nodes {
		node.SetSignal(ft.SignalErrorSq[2*i], ft.SignalErrorSq[2*i+1])
		stored, calc := ft.InverseVolume[i], node.CalcInverseVolume()
		if withinTolerance(stored, calc, c.tolerance) {
			node.SetInverseVolume(stored)
			continue
		}
		c.log.Warnf("box %d: stored inverse volume %g differs from %g computed from its extents, using the computed value",
			i, stored, calc)
		node.SetInverseVolume(calc)
		corrected++
	}
	if corrected > 0 {
		c.log.Warnf("corrected the inverse volume of %d of %d boxes", corrected, n)
	}
	return nodes, total, nil
}

// materialize loads the events of every leaf into memory.
func (c *Codec) materialize(ft *FlatTree, nodes []mdbox.Node, store mdbox.RecordStore) error {
	for _, leaf := range mdbox.Leaves(nodes) {
		i := leaf.ID()
		pos, count := ft.EventIndex[2*i], ft.EventIndex[2*i+1]
		if count == 0 {
			continue
		}
		records, err := store.LoadRecords(pos, count)
		if err != nil {
			return fmt.Errorf("%w: loading events of box %d: %w", mderrors.ErrFileAccess, i, err)
		}
		if err := leaf.AddEvents(records, len(records)/int(count)); err != nil {
			return fmt.Errorf("%w: events of box %d: %w", mderrors.ErrDataIntegrity, i, err)
		}
	}
	return nil
}

func withinTolerance(stored, calc, tol float64) bool {
	if stored == calc {
		return true
	}
	scale := math.Max(math.Abs(stored), math.Abs(calc))
	return math.Abs(stored-calc) <= tol*scale
}

// checkColumns verifies that ft has boxes and that every column matches
// the box count.
func checkColumns(ft *FlatTree) error {
	n := ft.NumBoxes()
	if n == 0 {
		return fmt.Errorf("%w: zero boxes", mderrors.ErrDataIntegrity)
	}
	if ft.Dims <= 0 {
		return fmt.Errorf("%w: %d dimensions", mderrors.ErrFormat, ft.Dims)
	}
	lengths := []struct {
		name      string
		got, want int
	}{
		{ColDepth, len(ft.Depth), n},
		{ColInverseVolume, len(ft.InverseVolume), n},
		{ColExtents, len(ft.Extents), n * ft.Dims * 2},
		{ColBoxChildren, len(ft.BoxChildren), 2 * n},
		{ColSignalErrorSq, len(ft.SignalErrorSq), 2 * n},
		{ColBoxEventIndex, len(ft.EventIndex), 2 * n},
	}
	for _, l := range lengths {
		if l.got != l.want {
			return fmt.Errorf("%w: %s has %d values, want %d for %d boxes",
				mderrors.ErrDataIntegrity, l.name, l.got, l.want, n)
		}
	}
	return nil
}
