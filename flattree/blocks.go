package flattree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// BlockFunc reads or writes the metadata block with the given index.
type BlockFunc func(g *boxfile.Group, index int) error

func blockName(i int) string {
	return BlockGroupPrefix + strconv.Itoa(i)
}

func workspace(f *boxfile.File) (*boxfile.Group, error) {
	ws, err := f.Root().OpenGroup(WorkspaceGroup)
	if err != nil {
		return nil, containerErr(err, "opening %s", WorkspaceGroup)
	}
	return ws, nil
}

// BlockIndices returns the indices of the blockN groups in the workspace in
// ascending order. Groups whose suffix is not a number are ignored.
func BlockIndices(f *boxfile.File) ([]int, error) {
	ws, err := workspace(f)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, name := range ws.Groups() {
		suffix, ok := strings.CutPrefix(name, BlockGroupPrefix)
		if !ok {
			continue
		}
		i, err := strconv.Atoi(suffix)
		if err != nil || i < 0 || blockName(i) != name {
			continue
		}
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// SaveBlocks makes sure groups block0 to block<count-1> exist. Existing
// blocks are left alone; write is called for each group it creates. It
// returns the number of blocks created.
func SaveBlocks(f *boxfile.File, count int, write BlockFunc) (int, error) {
	ws, err := workspace(f)
	if err != nil {
		return 0, err
	}
	created := 0
	for i := 0; i < count; i++ {
		name := blockName(i)
		if ws.HasGroup(name) {
			continue
		}
		g, err := ws.CreateGroup(name)
		if err != nil {
			return created, containerErr(err, "creating %s", name)
		}
		if err := g.SetAttr(AttrVersion, 1); err != nil {
			return created, containerErr(err, "writing %s version", name)
		}
		created++
		if write != nil {
			if err := write(g, i); err != nil {
				return created, fmt.Errorf("writing %s: %w", name, err)
			}
		}
	}
	return created, nil
}

// LoadBlocks calls read for every metadata block in index order.
func LoadBlocks(f *boxfile.File, read BlockFunc) error {
	indices, err := BlockIndices(f)
	if err != nil {
		return err
	}
	ws, err := workspace(f)
	if err != nil {
		return err
	}
	for _, i := range indices {
		g, err := ws.OpenGroup(blockName(i))
		if err != nil {
			return containerErr(err, "opening %s", blockName(i))
		}
		if err := read(g, i); err != nil {
			return fmt.Errorf("%w: reading %s: %w", mderrors.ErrFormat, blockName(i), err)
		}
	}
	return nil
}
