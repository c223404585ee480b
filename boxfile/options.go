package boxfile

import (
	"gopkg.in/src-d/go-billy.v4"

	"github.com/robert-malhotra/go-boxtree/internal/filter"
)

// DefaultChunkRows is the column capacity growth granularity.
const DefaultChunkRows = 16384

// FileOption configures how a file is created or opened.
type FileOption func(*fileOptions)

type fileOptions struct {
	fs billy.Filesystem
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{}
}

// WithFilesystem selects the filesystem holding the file. Paths are then
// interpreted relative to fs. The default is the OS filesystem rooted at
// the file's directory.
func WithFilesystem(fs billy.Filesystem) FileOption {
	return func(o *fileOptions) {
		o.fs = fs
	}
}

// ColumnOption configures column creation options.
type ColumnOption func(*columnOptions)

type columnOptions struct {
	chunkRows      uint64
	compressionLvl int
	shuffle        bool
	fletcher32     bool
}

func defaultColumnOptions() *columnOptions {
	return &columnOptions{
		chunkRows: DefaultChunkRows,
	}
}

// WithChunkRows sets the number of rows by which column capacity grows.
func WithChunkRows(n uint64) ColumnOption {
	return func(o *columnOptions) {
		if n > 0 {
			o.chunkRows = n
		}
	}
}

// WithCompression sets the zstd compression level (1-22, 0 = none).
func WithCompression(level int) ColumnOption {
	return func(o *columnOptions) {
		if level >= 0 && level <= 22 {
			o.compressionLvl = level
		}
	}
}

// WithShuffle enables the shuffle filter (improves compression).
func WithShuffle() ColumnOption {
	return func(o *columnOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 enables Fletcher32 checksum validation.
func WithFletcher32() ColumnOption {
	return func(o *columnOptions) {
		o.fletcher32 = true
	}
}

// filters returns the pipeline specs in application order.
func (o *columnOptions) filters(elemSize uint8) []filter.Spec {
	var specs []filter.Spec
	if o.shuffle {
		specs = append(specs, filter.Spec{ID: filter.IDShuffle, Params: []uint32{uint32(elemSize)}})
	}
	if o.compressionLvl > 0 {
		specs = append(specs, filter.Spec{ID: filter.IDZstd, Params: []uint32{uint32(o.compressionLvl)}})
	}
	if o.fletcher32 {
		specs = append(specs, filter.Spec{ID: filter.IDFletcher32})
	}
	return specs
}
