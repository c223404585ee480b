package mdbox

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// Flatten assigns dense ids to the tree below root in breadth-first order
// and returns the arena indexed by id. Every internal box is rewired to view
// its children inside the arena, so the children of each box form one
// contiguous id range and each depth occupies a contiguous block of ids.
func Flatten(root Node) ([]Node, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: no root box", mderrors.ErrFormat)
	}

	type span struct {
		parent      *Internal
		first, last int
	}

	nodes := []Node{root}
	seen := map[Node]bool{root: true}
	var spans []span
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		n.SetID(i)
		in, ok := n.(*Internal)
		if !ok {
			continue
		}
		kids := in.Children()
		if len(kids) == 0 {
			return nil, fmt.Errorf("%w: internal box at depth %d has no children", mderrors.ErrFormat, n.Depth())
		}
		first := len(nodes)
		for _, c := range kids {
			if c == nil || seen[c] {
				return nil, fmt.Errorf("%w: box is reachable twice or is nil", mderrors.ErrFormat)
			}
			if c.Depth() != n.Depth()+1 {
				return nil, fmt.Errorf("%w: child at depth %d under a box at depth %d",
					mderrors.ErrFormat, c.Depth(), n.Depth())
			}
			seen[c] = true
			nodes = append(nodes, c)
		}
		spans = append(spans, span{parent: in, first: first, last: len(nodes) - 1})
	}

	for _, s := range spans {
		if err := s.parent.SetChildren(nodes, s.first, s.last); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// ValidatePartition checks that ids are dense, that box 0 is the only root,
// that every child range lies inside the arena, and that the child ranges of
// the internal boxes at each depth d cover the boxes at depth d+1 exactly
// once.
func ValidatePartition(nodes []Node) error {
	for i, n := range nodes {
		if n == nil {
			return fmt.Errorf("%w: box %d is missing", mderrors.ErrFormat, i)
		}
		if n.ID() != i {
			return fmt.Errorf("%w: box at index %d has id %d", mderrors.ErrFormat, i, n.ID())
		}
		switch {
		case i == 0 && n.Depth() != 0:
			return fmt.Errorf("%w: root box has depth %d", mderrors.ErrFormat, n.Depth())
		case i > 0 && n.Depth() < 1:
			return fmt.Errorf("%w: box %d at depth %d is a second root", mderrors.ErrFormat, i, n.Depth())
		}
	}

	covered := make([]bool, len(nodes))
	for i, n := range nodes {
		in, ok := n.(*Internal)
		if !ok {
			continue
		}
		first, last := in.ChildRange()
		if first < 1 || first > last || last >= len(nodes) {
			return fmt.Errorf("%w: box %d has child range [%d, %d] in %d boxes",
				mderrors.ErrFormat, i, first, last, len(nodes))
		}
		for c := first; c <= last; c++ {
			if covered[c] {
				return fmt.Errorf("%w: box %d is claimed by two parents", mderrors.ErrFormat, c)
			}
			if nodes[c].Depth() != n.Depth()+1 {
				return fmt.Errorf("%w: box %d at depth %d is a child of box %d at depth %d",
					mderrors.ErrFormat, c, nodes[c].Depth(), i, n.Depth())
			}
			covered[c] = true
		}
	}
	for i := 1; i < len(nodes); i++ {
		if !covered[i] {
			return fmt.Errorf("%w: box %d at depth %d has no parent", mderrors.ErrFormat, i, nodes[i].Depth())
		}
	}
	return nil
}

// Walk calls fn for root and every box below it, depth first, parents
// before children. It stops at the first error.
func Walk(root Node, fn func(Node) error) error {
	if err := fn(root); err != nil {
		return err
	}
	if in, ok := root.(*Internal); ok {
		for _, c := range in.Children() {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Leaves returns the leaves of nodes in id order.
func Leaves(nodes []Node) []*Leaf {
	var out []*Leaf
	for _, n := range nodes {
		if l, ok := n.(*Leaf); ok {
			out = append(out, l)
		}
	}
	return out
}

// LoadAll makes the events of every file-backed leaf resident, loading up to
// concurrency leaves at a time. A concurrency below one means no limit.
func LoadAll(ctx context.Context, nodes []Node, concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, l := range Leaves(nodes) {
		if !l.IsFileBacked() || l.InMemory() {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		l := l
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := l.Events()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
