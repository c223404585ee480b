// Package mdbox holds the box tree node model: leaf boxes that own event
// records in memory or on a record store, and internal boxes that own a
// contiguous id range of children in a shared node arena.
package mdbox

import (
	"fmt"
	"math"
)

// Kind is the persisted box type.
type Kind int32

const (
	KindNone     Kind = 0
	KindLeaf     Kind = 1
	KindInternal Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

// Extent is the closed interval a box covers in one dimension.
type Extent struct {
	Min, Max float64
}

// Size returns Max - Min.
func (e Extent) Size() float64 {
	return e.Max - e.Min
}

// Node is one box of the tree.
type Node interface {
	ID() int
	SetID(id int)
	Depth() int
	Kind() Kind
	Dims() int
	Extents() []Extent

	Signal() float64
	ErrorSquared() float64
	SetSignal(signal, errorSquared float64)

	InverseVolume() float64
	SetInverseVolume(v float64)
	// CalcInverseVolume recomputes the inverse volume from the extents.
	CalcInverseVolume() float64

	// TotalDataSize is the number of events held by the box and every box
	// below it.
	TotalDataSize() uint64
}

// box holds the fields shared by leaves and internal boxes.
type box struct {
	id        int
	depth     int
	extents   []Extent
	signal    float64
	errorSq   float64
	invVolume float64
}

func newBox(depth int, extents []Extent) box {
	b := box{
		id:      -1,
		depth:   depth,
		extents: append([]Extent(nil), extents...),
	}
	b.invVolume = b.CalcInverseVolume()
	return b
}

func (b *box) ID() int                    { return b.id }
func (b *box) SetID(id int)               { b.id = id }
func (b *box) Depth() int                 { return b.depth }
func (b *box) Dims() int                  { return len(b.extents) }
func (b *box) Extents() []Extent          { return b.extents }
func (b *box) Signal() float64            { return b.signal }
func (b *box) ErrorSquared() float64      { return b.errorSq }
func (b *box) InverseVolume() float64     { return b.invVolume }
func (b *box) SetInverseVolume(v float64) { b.invVolume = v }

func (b *box) SetSignal(signal, errorSquared float64) {
	b.signal = signal
	b.errorSq = errorSquared
}

// CalcInverseVolume returns 1/volume, or 0 for a box with no volume.
func (b *box) CalcInverseVolume() float64 {
	if len(b.extents) == 0 {
		return 0
	}
	vol := 1.0
	for _, e := range b.extents {
		vol *= e.Size()
	}
	if vol == 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0
	}
	return 1 / vol
}
