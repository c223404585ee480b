package mdbox

import (
	"fmt"

	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// Internal is a box whose children occupy the id range [first, last] of a
// node arena. Before the tree is flattened the children are held in an
// owned slice built with AddChild.
type Internal struct {
	box

	children    []Node
	first, last int
}

// NewInternal returns an internal box with no children.
func NewInternal(depth int, extents []Extent) *Internal {
	return &Internal{box: newBox(depth, extents), first: -1, last: -1}
}

func (n *Internal) Kind() Kind { return KindInternal }

// AddChild appends a child while the tree is being built.
func (n *Internal) AddChild(child Node) {
	n.children = append(n.children, child)
	n.first, n.last = -1, -1
}

// SetChildren points the node at nodes[first:last+1].
func (n *Internal) SetChildren(nodes []Node, first, last int) error {
	if first < 0 || first > last || last >= len(nodes) {
		return fmt.Errorf("%w: child range [%d, %d] of box %d outside %d boxes",
			mderrors.ErrFormat, first, last, n.id, len(nodes))
	}
	n.children = nodes[first : last+1 : last+1]
	n.first, n.last = first, last
	return nil
}

// ChildRange returns the inclusive id range of the children, or (-1, -1)
// when the children are not an arena view.
func (n *Internal) ChildRange() (first, last int) {
	return n.first, n.last
}

func (n *Internal) Children() []Node { return n.children }
func (n *Internal) NumChildren() int { return len(n.children) }
func (n *Internal) Child(i int) Node { return n.children[i] }

// TotalDataSize sums the events of every box below n.
func (n *Internal) TotalDataSize() uint64 {
	var total uint64
	for _, c := range n.children {
		total += c.TotalDataSize()
	}
	return total
}

// RefreshCache recomputes signal and squared error from the children.
func (n *Internal) RefreshCache() {
	n.signal, n.errorSq = 0, 0
	for _, c := range n.children {
		if in, ok := c.(*Internal); ok {
			in.RefreshCache()
		}
		n.signal += c.Signal()
		n.errorSq += c.ErrorSquared()
	}
}
