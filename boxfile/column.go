package boxfile

import (
	"fmt"
	"path"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
	"github.com/robert-malhotra/go-boxtree/internal/catalog"
	"github.com/robert-malhotra/go-boxtree/internal/dtype"
	"github.com/robert-malhotra/go-boxtree/internal/filter"
)

const undefinedAddr = binpkg.Undefined

// Column is a resizable array of fixed-width rows stored in one extent.
type Column struct {
	file *File
	path string
	desc *catalog.Column
}

// Name returns the column name (last component of path).
func (c *Column) Name() string {
	return path.Base(c.path)
}

// Path returns the full path to this column.
func (c *Column) Path() string {
	return c.path
}

// Type returns the element type.
func (c *Column) Type() dtype.Type {
	return c.desc.Type
}

// RowWidth returns the number of elements per row.
func (c *Column) RowWidth() uint64 {
	return c.desc.RowWidth
}

// Rows returns the number of stored rows.
func (c *Column) Rows() uint64 {
	return c.desc.Rows
}

// Len returns the number of stored elements.
func (c *Column) Len() uint64 {
	return c.desc.Elements()
}

// Shape returns [rows] for single-element rows and [rows, rowWidth]
// otherwise.
func (c *Column) Shape() []uint64 {
	if c.desc.RowWidth == 1 {
		return []uint64{c.desc.Rows}
	}
	return []uint64{c.desc.Rows, c.desc.RowWidth}
}

// Capacity returns the bytes reserved for the column's stored data.
func (c *Column) Capacity() uint64 {
	return c.desc.Capacity
}

// Filters returns the IDs of the filters applied to stored data.
func (c *Column) Filters() []uint16 {
	ids := make([]uint16, len(c.desc.Filters))
	for i, s := range c.desc.Filters {
		ids[i] = s.ID
	}
	return ids
}

// Write replaces the column contents with data, a slice of numbers whose
// length is a multiple of the row width. The data is written in place when
// the stored bytes fit the current capacity and moved to a new extent
// otherwise.
func (c *Column) Write(data interface{}) error {
	f := c.file
	if err := f.checkWritable(); err != nil {
		return err
	}

	raw, err := dtype.Encode(c.desc.Type, data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", c.path, err)
	}
	elemSize := uint64(c.desc.Type.Size)
	elems := uint64(len(raw)) / elemSize
	if elems%c.desc.RowWidth != 0 {
		return fmt.Errorf("%w: %s has %d elements, row width %d", ErrInvalidShape, c.path, elems, c.desc.RowWidth)
	}

	pipeline, err := newPipeline(c.desc.Filters)
	if err != nil {
		return err
	}
	stored, err := pipeline.Encode(raw)
	if err != nil {
		return fmt.Errorf("filtering %s: %w", c.path, err)
	}

	need := uint64(len(stored))
	if need > c.desc.Capacity {
		capacity := c.growCapacity(need)
		f.release(c.desc.Addr, c.desc.Capacity)
		c.desc.Addr = f.allocator.Alloc(capacity)
		c.desc.Capacity = capacity
	}
	if need > 0 {
		if err := f.writer.At(int64(c.desc.Addr)).WriteBytes(stored); err != nil {
			return fmt.Errorf("writing %s: %w", c.path, err)
		}
	}

	c.desc.Rows = elems / c.desc.RowWidth
	c.desc.Stored = need
	c.desc.Checksum = binpkg.Lookup3Checksum(stored)
	return nil
}

// growCapacity rounds need up to a whole number of chunks.
func (c *Column) growCapacity(need uint64) uint64 {
	chunk := c.desc.ChunkRows * c.desc.RowWidth * uint64(c.desc.Type.Size)
	if chunk == 0 {
		return need
	}
	return (need + chunk - 1) / chunk * chunk
}

// ReadRaw returns the unfiltered little-endian bytes of the column.
func (c *Column) ReadRaw() ([]byte, error) {
	if c.file.closed {
		return nil, ErrClosed
	}
	if c.desc.Stored == 0 {
		return []byte{}, nil
	}

	stored, err := c.file.reader.At(int64(c.desc.Addr)).ReadBytes(int(c.desc.Stored))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.path, err)
	}
	if !binpkg.VerifyLookup3(stored, c.desc.Checksum) {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, c.path)
	}

	pipeline, err := newPipeline(c.desc.Filters)
	if err != nil {
		return nil, err
	}
	raw, err := pipeline.Decode(stored)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.path, err)
	}
	if uint64(len(raw)) != c.desc.RawSize() {
		return nil, fmt.Errorf("%w: %s decoded to %d bytes, want %d", ErrChecksum, c.path, len(raw), c.desc.RawSize())
	}
	return raw, nil
}

// Read reads all elements into dest, which must be a pointer to a slice of
// a numeric type.
func (c *Column) Read(dest interface{}) error {
	raw, err := c.ReadRaw()
	if err != nil {
		return err
	}
	return dtype.Convert(c.desc.Type, raw, c.desc.Elements(), dest)
}

// ReadInt32 reads the column as int32 values.
func (c *Column) ReadInt32() ([]int32, error) {
	return readAs[int32](c)
}

// ReadInt64 reads the column as int64 values.
func (c *Column) ReadInt64() ([]int64, error) {
	return readAs[int64](c)
}

// ReadUint64 reads the column as uint64 values.
func (c *Column) ReadUint64() ([]uint64, error) {
	return readAs[uint64](c)
}

// ReadFloat32 reads the column as float32 values.
func (c *Column) ReadFloat32() ([]float32, error) {
	return readAs[float32](c)
}

// ReadFloat64 reads the column as float64 values.
func (c *Column) ReadFloat64() ([]float64, error) {
	return readAs[float64](c)
}

func readAs[T any](c *Column) ([]T, error) {
	raw, err := c.ReadRaw()
	if err != nil {
		return nil, err
	}
	return dtype.ConvertToSlice[T](c.desc.Type, raw, c.desc.Elements())
}

func newPipeline(specs []filter.Spec) (*filter.Pipeline, error) {
	p, err := filter.NewPipeline(specs)
	if err != nil {
		return nil, fmt.Errorf("building filter pipeline: %w", err)
	}
	return p, nil
}
