package boxfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/robert-malhotra/go-boxtree/internal/alloc"
	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
	"github.com/robert-malhotra/go-boxtree/internal/catalog"
	"github.com/robert-malhotra/go-boxtree/internal/superblock"
)

// File is an open container file. A File is not safe for concurrent use.
type File struct {
	path       string
	fs         billy.Filesystem
	file       billy.File
	reader     *binpkg.Reader
	superblock *superblock.Superblock
	catalog    *catalog.Catalog
	root       *Group
	closed     bool

	// Write support fields
	writable  bool
	writer    *binpkg.Writer
	allocator *alloc.Allocator

	// released holds column extents replaced since the last flush. They are
	// only reused once a catalog that no longer references them is durable.
	released []alloc.FreeBlock
}

// Info summarizes the container header.
type Info struct {
	Version        int
	FileID         uuid.UUID
	EOF            uint64
	CatalogAddress uint64
	CatalogSize    uint64
	// OpenForWrite is set when a writer did not close the file cleanly.
	OpenForWrite bool
}

// resolve returns the filesystem and the name of path within it.
func (o *fileOptions) resolve(path string) (billy.Filesystem, string, error) {
	if o.fs != nil {
		return o.fs, path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}

// Open opens a container file for reading.
func Open(path string, opts ...FileOption) (*File, error) {
	return open(path, os.O_RDONLY, opts)
}

// OpenReadWrite opens an existing container file for reading and writing.
func OpenReadWrite(path string, opts ...FileOption) (*File, error) {
	return open(path, os.O_RDWR, opts)
}

func open(path string, flag int, opts []FileOption) (*File, error) {
	options := defaultFileOptions()
	for _, opt := range opts {
		opt(options)
	}
	fs, name, err := options.resolve(path)
	if err != nil {
		return nil, err
	}

	bf, err := fs.OpenFile(name, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	f := &File{
		path:   path,
		fs:     fs,
		file:   bf,
		reader: binpkg.NewReader(bf),
	}
	if err := f.load(); err != nil {
		return nil, multierr.Append(err, bf.Close())
	}

	if flag&os.O_RDWR != 0 {
		if err := f.enableWrite(); err != nil {
			return nil, multierr.Append(err, bf.Close())
		}
	}
	return f, nil
}

// load reads the superblock and the catalog it points to.
func (f *File) load() error {
	sb, err := superblock.Read(f.file)
	if err != nil {
		return fmt.Errorf("reading superblock: %w", err)
	}
	if !sb.HasCatalog() {
		return fmt.Errorf("%w: no catalog", superblock.ErrInvalidSuperblock)
	}

	data, err := f.reader.At(int64(sb.CatalogAddress)).ReadBytes(int(sb.CatalogSize))
	if err != nil {
		return fmt.Errorf("reading catalog at 0x%x: %w", sb.CatalogAddress, err)
	}
	cat, err := catalog.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding catalog: %w", err)
	}

	f.superblock = sb
	f.catalog = cat
	f.root = &Group{file: f, path: "/", node: cat.Root}
	return nil
}

// enableWrite restores the allocator and marks the file as open for write.
func (f *File) enableWrite() error {
	a, err := alloc.Restore(superblock.Size, f.superblock.EOFAddress, f.catalog.Free)
	if err != nil {
		return fmt.Errorf("restoring free list: %w", err)
	}
	f.allocator = a
	f.writable = true
	f.writer = binpkg.NewWriter(binpkg.WriterAt(f.file))

	f.superblock.Flags |= superblock.FlagOpenForWrite
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// Close flushes a writable file and releases the underlying handle.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	var err error
	if f.writable {
		f.superblock.Flags &^= superblock.FlagOpenForWrite
		err = f.Flush()
	}
	f.closed = true
	return multierr.Append(err, f.file.Close())
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// ID returns the identity assigned when the file was created.
func (f *File) ID() uuid.UUID {
	return f.superblock.FileID
}

// IsWritable reports whether the file accepts modifications.
func (f *File) IsWritable() bool {
	return f.writable && !f.closed
}

// Info returns a summary of the superblock.
func (f *File) Info() Info {
	sb := f.superblock
	return Info{
		Version:        int(sb.Version),
		FileID:         sb.FileID,
		EOF:            sb.EOFAddress,
		CatalogAddress: sb.CatalogAddress,
		CatalogSize:    sb.CatalogSize,
		OpenForWrite:   sb.Flags&superblock.FlagOpenForWrite != 0,
	}
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenColumn opens a column by absolute path.
func (f *File) OpenColumn(path string) (*Column, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenColumn(path)
}

// ReadAttr reads an attribute by path.
//
//	val, err := f.ReadAttr("/@version")
//	val, err := f.ReadAttr("/event_workspace/box_structure@version")
func (f *File) ReadAttr(path string) (interface{}, error) {
	objectPath, name, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}
	g, err := f.OpenGroup(objectPath)
	if err != nil {
		return nil, err
	}
	return g.Attr(name)
}
