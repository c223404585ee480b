package boxfile

import (
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-boxtree/internal/alloc"
	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
	"github.com/robert-malhotra/go-boxtree/internal/catalog"
	"github.com/robert-malhotra/go-boxtree/internal/superblock"
)

const (
	// catalogSlack absorbs growth of the free list between sizing and
	// writing the catalog.
	catalogSlack = 256
	catalogAlign = 64
)

// Create creates a new container file at path, truncating any existing one.
func Create(path string, opts ...FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}
	fs, name, err := options.resolve(path)
	if err != nil {
		return nil, err
	}

	bf, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	sb := superblock.New()
	sb.Flags |= superblock.FlagOpenForWrite
	cat := catalog.New()

	f := &File{
		path:       path,
		fs:         fs,
		file:       bf,
		reader:     binpkg.NewReader(bf),
		superblock: sb,
		catalog:    cat,
		writable:   true,
		writer:     binpkg.NewWriter(binpkg.WriterAt(bf)),
		allocator:  alloc.New(superblock.Size),
	}
	f.root = &Group{file: f, path: "/", node: cat.Root}

	if err := f.Flush(); err != nil {
		return nil, multierr.Combine(err, bf.Close(), fs.Remove(name))
	}
	return f, nil
}

// Flush writes the catalog to a fresh extent, points the superblock at it
// and syncs the file. Extents released since the previous flush become
// reusable afterwards.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return nil
	}

	if err := f.writeCatalog(); err != nil {
		return err
	}
	return f.sync()
}

func (f *File) writeCatalog() error {
	sb := f.superblock
	old := append([]alloc.FreeBlock(nil), f.released...)
	if sb.HasCatalog() {
		old = append(old, alloc.FreeBlock{Addr: sb.CatalogAddress, Size: sb.CatalogSize})
	}

	data, err := catalog.Encode(f.catalog)
	if err != nil {
		return err
	}
	capacity := catalogCapacity(len(data))
	addr := f.allocator.Alloc(capacity)

	var eof uint64
	for {
		f.catalog.Free, eof = f.allocator.SnapshotAfterFree(old...)
		if data, err = catalog.Encode(f.catalog); err != nil {
			return err
		}
		if uint64(len(data)) <= capacity {
			break
		}
		f.allocator.Free(addr, capacity)
		capacity = catalogCapacity(len(data))
		addr = f.allocator.Alloc(capacity)
	}

	buf := make([]byte, capacity)
	copy(buf, data)
	if err := f.writer.At(int64(addr)).WriteBytes(buf); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}

	sb.CatalogAddress = addr
	sb.CatalogSize = capacity
	sb.EOFAddress = eof
	if _, err := sb.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}

	for _, b := range old {
		f.allocator.Free(b.Addr, b.Size)
	}
	f.released = f.released[:0]
	return nil
}

func catalogCapacity(n int) uint64 {
	size := uint64(n + catalogSlack)
	return (size + catalogAlign - 1) / catalogAlign * catalogAlign
}

func (f *File) sync() error {
	if s, ok := f.file.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// release schedules an extent for reuse after the next flush.
func (f *File) release(addr, size uint64) {
	if size == 0 || addr == binpkg.Undefined {
		return
	}
	f.released = append(f.released, alloc.FreeBlock{Addr: addr, Size: size})
}

// AllocStats returns allocation statistics (for debugging/testing).
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

// FreeBytes returns the space held in the persisted free list.
func (f *File) FreeBytes() uint64 {
	var n uint64
	for _, b := range f.catalog.Free {
		n += b.Size
	}
	return n
}

func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	return nil
}
