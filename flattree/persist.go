package flattree

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/internal/dtype"
	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// containerErr maps container errors onto the fatal error taxonomy.
func containerErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, boxfile.ErrNotFound),
		errors.Is(err, boxfile.ErrNotGroup),
		errors.Is(err, boxfile.ErrNotColumn),
		errors.Is(err, boxfile.ErrInvalidShape),
		errors.Is(err, boxfile.ErrNotContainer):
		return fmt.Errorf("%w: %s: %w", mderrors.ErrFormat, msg, err)
	case errors.Is(err, boxfile.ErrChecksum):
		return fmt.Errorf("%w: %s: %w", mderrors.ErrDataIntegrity, msg, err)
	}
	return fmt.Errorf("%w: %s: %w", mderrors.ErrFileAccess, msg, err)
}

// OpenContainer opens the container file at path. A read-only open of a
// missing file fails; a read-write open creates the file when it is absent.
func OpenContainer(path string, readOnly bool, opts ...boxfile.FileOption) (*boxfile.File, error) {
	if readOnly {
		f, err := boxfile.Open(path, opts...)
		return f, containerErr(err, "opening %s read-only", path)
	}
	f, err := boxfile.OpenReadWrite(path, opts...)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = boxfile.Create(path, opts...)
	}
	return f, containerErr(err, "opening %s", path)
}

// OpenWorkspace opens the container at path and checks, or in a writable
// file creates, its workspace group for dims dimensions.
func (c *Codec) OpenWorkspace(path string, dims int, readOnly bool, opts ...boxfile.FileOption) (*boxfile.File, error) {
	f, err := OpenContainer(path, readOnly, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := c.EnsureWorkspace(f, dims); err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	return f, nil
}

// EnsureWorkspace returns the workspace group of f after checking its event
// type and dimension count. Missing parts are written when f is writable;
// in a read-only file they are a format error.
func (c *Codec) EnsureWorkspace(f *boxfile.File, dims int) (*boxfile.Group, error) {
	root := f.Root()
	writable := f.IsWritable()

	if !root.HasGroup(WorkspaceGroup) {
		if !writable {
			return nil, fmt.Errorf("%w: %s has no %s group", mderrors.ErrFormat, f.Path(), WorkspaceGroup)
		}
		g, err := root.CreateGroup(WorkspaceGroup)
		if err != nil {
			return nil, containerErr(err, "creating %s", WorkspaceGroup)
		}
		if err := g.SetAttr(AttrEventType, c.eventType); err != nil {
			return nil, containerErr(err, "writing %s", AttrEventType)
		}
		if err := writeDims(g, dims, c.columnOpts); err != nil {
			return nil, err
		}
		c.log.Debugf("created %s in %s for %d-dimensional %s events", WorkspaceGroup, f.Path(), dims, c.eventType)
		return g, nil
	}

	g, err := root.OpenGroup(WorkspaceGroup)
	if err != nil {
		return nil, containerErr(err, "opening %s", WorkspaceGroup)
	}
	if g.HasAttr(AttrEventType) {
		stored, err := g.AttrString(AttrEventType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", mderrors.ErrFormat, err)
		}
		if stored != c.eventType {
			return nil, fmt.Errorf("%w: %s holds %s events, not %s", mderrors.ErrFormat, f.Path(), stored, c.eventType)
		}
	} else {
		if !writable {
			return nil, fmt.Errorf("%w: %s does not record its event type", mderrors.ErrFormat, WorkspaceGroup)
		}
		if err := g.SetAttr(AttrEventType, c.eventType); err != nil {
			return nil, containerErr(err, "writing %s", AttrEventType)
		}
	}

	if !g.HasColumn(DimensionsColumn) {
		if !writable {
			return nil, fmt.Errorf("%w: %s does not record its dimensions", mderrors.ErrFormat, WorkspaceGroup)
		}
		return g, writeDims(g, dims, c.columnOpts)
	}
	col, err := g.OpenColumn(DimensionsColumn)
	if err != nil {
		return nil, containerErr(err, "opening %s", DimensionsColumn)
	}
	stored, err := col.ReadInt32()
	if err != nil {
		return nil, containerErr(err, "reading %s", DimensionsColumn)
	}
	if len(stored) != 1 || int(stored[0]) != dims {
		return nil, fmt.Errorf("%w: %s was written for %v dimensions, not %d", mderrors.ErrFormat, f.Path(), stored, dims)
	}
	return g, nil
}

func writeDims(g *boxfile.Group, dims int, opts []boxfile.ColumnOption) error {
	col, err := g.CreateColumn(DimensionsColumn, dtype.Int32, 1, opts...)
	if err != nil {
		return containerErr(err, "creating %s", DimensionsColumn)
	}
	return containerErr(col.Write([]int32{int32(dims)}), "writing %s", DimensionsColumn)
}

type columnDef struct {
	name     string
	typ      dtype.Type
	rowWidth int
	data     interface{}
}

func (ft *FlatTree) columns() []columnDef {
	return []columnDef{
		{ColBoxType, dtype.Int32, 1, ft.BoxType},
		{ColDepth, dtype.Int32, 1, ft.Depth},
		{ColInverseVolume, dtype.Float64, 1, ft.InverseVolume},
		{ColExtents, dtype.Float64, 2 * ft.Dims, ft.Extents},
		{ColBoxChildren, dtype.Int64, 2, ft.BoxChildren},
		{ColSignalErrorSq, dtype.Float64, 2, ft.SignalErrorSq},
		{ColBoxEventIndex, dtype.Uint64, 2, ft.EventIndex},
	}
}

// Persist writes ft into f. The first save creates the box structure group
// with its version attribute; later saves refresh the controller descriptor
// and rewrite every column in place. The file is flushed on success.
func (c *Codec) Persist(ft *FlatTree, f *boxfile.File) error {
	if ft.IndexOnly {
		return fmt.Errorf("%w: an index-only flat tree cannot be saved", mderrors.ErrFormat)
	}
	if err := checkColumns(ft); err != nil {
		return err
	}
	if !f.IsWritable() {
		return fmt.Errorf("%w: %s: %w", mderrors.ErrFileAccess, f.Path(), boxfile.ErrReadOnly)
	}
	if ft.EventType != "" && ft.EventType != c.eventType {
		return fmt.Errorf("%w: tree holds %s events, codec writes %s", mderrors.ErrFormat, ft.EventType, c.eventType)
	}

	ws, err := c.EnsureWorkspace(f, ft.Dims)
	if err != nil {
		return err
	}

	var g *boxfile.Group
	created := !ws.HasGroup(c.group)
	if created {
		if g, err = ws.CreateGroup(c.group); err != nil {
			return containerErr(err, "creating %s", c.group)
		}
		if err := g.SetAttr(AttrVersion, FormatVersion); err != nil {
			return containerErr(err, "writing %s", AttrVersion)
		}
	} else if g, err = ws.OpenGroup(c.group); err != nil {
		return containerErr(err, "opening %s", c.group)
	}
	if err := g.SetAttr(AttrDescriptor, ft.ControllerDescriptor); err != nil {
		return containerErr(err, "writing %s", AttrDescriptor)
	}

	for _, def := range ft.columns() {
		var col *boxfile.Column
		if g.HasColumn(def.name) {
			col, err = g.OpenColumn(def.name)
		} else {
			col, err = g.CreateColumn(def.name, def.typ, uint64(def.rowWidth), c.columnOpts...)
		}
		if err != nil {
			return containerErr(err, "preparing %s", def.name)
		}
		if col.RowWidth() != uint64(def.rowWidth) {
			return fmt.Errorf("%w: %s has row width %d, tree needs %d",
				mderrors.ErrFormat, col.Path(), col.RowWidth(), def.rowWidth)
		}
		if err := col.Write(def.data); err != nil {
			return containerErr(err, "writing %s", def.name)
		}
	}

	if err := f.Flush(); err != nil {
		return containerErr(err, "flushing %s", f.Path())
	}
	if created {
		c.log.Debugf("saved %d boxes into new group %s/%s", ft.NumBoxes(), WorkspaceGroup, c.group)
	} else {
		c.log.Debugf("updated %d boxes in %s/%s", ft.NumBoxes(), WorkspaceGroup, c.group)
	}
	return nil
}

// Restore reads the flat tree stored in f. The workspace must record
// eventType and dims. With onlyIndex set only box_type and box_event_index
// are read.
func (c *Codec) Restore(f *boxfile.File, dims int, eventType string, onlyIndex bool) (*FlatTree, error) {
	check := *c
	check.eventType = eventType
	ws, err := check.validateWorkspace(f, dims)
	if err != nil {
		return nil, err
	}
	g, err := ws.OpenGroup(c.group)
	if err != nil {
		return nil, containerErr(err, "opening %s", c.group)
	}

	ft := &FlatTree{Dims: dims, EventType: eventType, IndexOnly: onlyIndex}
	if ft.ControllerDescriptor, err = g.AttrString(AttrDescriptor); err != nil {
		return nil, containerErr(err, "reading %s", AttrDescriptor)
	}

	if ft.BoxType, err = readColumn[int32](g, ColBoxType); err != nil {
		return nil, err
	}
	n := len(ft.BoxType)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s holds zero boxes", mderrors.ErrDataIntegrity, g.Path())
	}
	if ft.EventIndex, err = readColumn[uint64](g, ColBoxEventIndex); err != nil {
		return nil, err
	}
	if onlyIndex {
		if len(ft.EventIndex) != 2*n {
			return nil, fmt.Errorf("%w: %s has %d values, want %d for %d boxes",
				mderrors.ErrDataIntegrity, ColBoxEventIndex, len(ft.EventIndex), 2*n, n)
		}
		return ft, nil
	}

	if ft.Depth, err = readColumn[int32](g, ColDepth); err != nil {
		return nil, err
	}
	if ft.InverseVolume, err = readColumn[float64](g, ColInverseVolume); err != nil {
		return nil, err
	}
	if ft.Extents, err = readColumn[float64](g, ColExtents); err != nil {
		return nil, err
	}
	if ft.BoxChildren, err = readColumn[int64](g, ColBoxChildren); err != nil {
		return nil, err
	}
	if ft.SignalErrorSq, err = readColumn[float64](g, ColSignalErrorSq); err != nil {
		return nil, err
	}

	if len(ft.Extents)%(2*n) != 0 {
		return nil, fmt.Errorf("%w: %s has %d values for %d boxes",
			mderrors.ErrDataIntegrity, ColExtents, len(ft.Extents), n)
	}
	if stored := len(ft.Extents) / (2 * n); stored != dims {
		return nil, fmt.Errorf("%w: %s holds %d-dimensional extents, want %d",
			mderrors.ErrFormat, g.Path(), stored, dims)
	}
	if err := checkColumns(ft); err != nil {
		return nil, err
	}
	return ft, nil
}

// validateWorkspace checks the workspace group without writing to f.
func (c *Codec) validateWorkspace(f *boxfile.File, dims int) (*boxfile.Group, error) {
	if !f.Root().HasGroup(WorkspaceGroup) {
		return nil, fmt.Errorf("%w: %s has no %s group", mderrors.ErrFormat, f.Path(), WorkspaceGroup)
	}
	ws, err := f.Root().OpenGroup(WorkspaceGroup)
	if err != nil {
		return nil, containerErr(err, "opening %s", WorkspaceGroup)
	}
	if !ws.HasAttr(AttrEventType) || !ws.HasColumn(DimensionsColumn) {
		return nil, fmt.Errorf("%w: %s does not record its event type and dimensions", mderrors.ErrFormat, WorkspaceGroup)
	}
	return c.EnsureWorkspace(f, dims)
}

func readColumn[T any](g *boxfile.Group, name string) ([]T, error) {
	col, err := g.OpenColumn(name)
	if err != nil {
		return nil, containerErr(err, "opening %s", name)
	}
	var out []T
	if err := col.Read(&out); err != nil {
		return nil, containerErr(err, "reading %s", name)
	}
	return out, nil
}
