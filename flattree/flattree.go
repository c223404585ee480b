// Package flattree converts box trees to and from a columnar "flat tree"
// and persists flat trees in container files.
//
// A flat tree has one row per box, indexed by the box id. Internal boxes
// record the inclusive id range of their children and leaves record the
// record range of their events in a disk-backed store:
//
//	box_type                 int32    1 per box
//	depth                    int32    1 per box
//	inverse_volume           float64  1 per box
//	extents                  float64  2*dims per box (min, max per dimension)
//	box_children             int64    2 per box (first, last)
//	box_signal_errorsquared  float64  2 per box
//	box_event_index          uint64   2 per box (position, count)
//
// The columns live in a group named box_structure inside the event_workspace
// group, which also records the event type and the dimension count.
package flattree

import (
	"math"

	"github.com/robert-malhotra/go-boxtree/mdbox"
)

// UndefinedPosition marks a leaf whose events have no file position yet.
const UndefinedPosition = math.MaxUint64

// Container layout.
const (
	WorkspaceGroup   = "event_workspace"
	DefaultGroupName = "box_structure"
	FormatVersion    = "1.0"
	AttrVersion      = "version"
	AttrDescriptor   = "controller_descriptor"
	AttrEventType    = "event_type"
	DimensionsColumn = "dimensions"
	BlockGroupPrefix = "block"
	ColBoxType       = "box_type"
	ColDepth         = "depth"
	ColInverseVolume = "inverse_volume"
	ColExtents       = "extents"
	ColBoxChildren   = "box_children"
	ColSignalErrorSq = "box_signal_errorsquared"
	ColBoxEventIndex = "box_event_index"
)

// FlatTree is the columnar form of a box tree.
type FlatTree struct {
	BoxType       []int32
	Depth         []int32
	InverseVolume []float64
	Extents       []float64
	BoxChildren   []int64
	SignalErrorSq []float64
	EventIndex    []uint64

	Dims                 int
	ControllerDescriptor string
	EventType            string

	// IndexOnly is set on trees restored with only box_type and
	// box_event_index populated.
	IndexOnly bool
}

// LeafRange is the event addressing of one leaf.
type LeafRange struct {
	ID       int
	Position uint64
	Count    uint64
}

// NumBoxes returns the number of rows.
func (ft *FlatTree) NumBoxes() int {
	return len(ft.BoxType)
}

// LeafRanges returns the event range of every leaf in id order. It needs
// only box_type and box_event_index, so it works on index-only trees.
func (ft *FlatTree) LeafRanges() []LeafRange {
	var out []LeafRange
	for i, k := range ft.BoxType {
		if mdbox.Kind(k) != mdbox.KindLeaf || 2*i+1 >= len(ft.EventIndex) {
			continue
		}
		out = append(out, LeafRange{ID: i, Position: ft.EventIndex[2*i], Count: ft.EventIndex[2*i+1]})
	}
	return out
}

// TotalEvents sums the event counts of the leaves.
func (ft *FlatTree) TotalEvents() uint64 {
	var total uint64
	for _, r := range ft.LeafRanges() {
		total += r.Count
	}
	return total
}

// AssignSequentialFilePositions gives every leaf without a file position
// the next free range after the furthest defined one, in id order. Leaves
// that already have a position keep it. It returns the end of the last
// range, which is the prefix sum of all counts when no leaf had a position.
func AssignSequentialFilePositions(ft *FlatTree) uint64 {
	var next uint64
	for i, k := range ft.BoxType {
		if mdbox.Kind(k) != mdbox.KindLeaf {
			continue
		}
		if pos := ft.EventIndex[2*i]; pos != UndefinedPosition {
			next = max(next, pos+ft.EventIndex[2*i+1])
		}
	}
	for i, k := range ft.BoxType {
		if mdbox.Kind(k) != mdbox.KindLeaf || ft.EventIndex[2*i] != UndefinedPosition {
			continue
		}
		ft.EventIndex[2*i] = next
		next += ft.EventIndex[2*i+1]
	}
	return next
}
