// Package diskstore pages fixed-width numeric record blocks between memory
// and a single backing file.
//
// Saves are queued in order and written behind once the queue outgrows its
// threshold. Loads read the file and then overlay queued saves, so a load
// always observes every save issued before it. One mutex per store guards
// the file handle and the queue.
package diskstore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/robert-malhotra/go-boxtree/internal/alloc"
	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
	"github.com/robert-malhotra/go-boxtree/logger"
	"github.com/robert-malhotra/go-boxtree/mderrors"
)

// Defaults for New.
const (
	DefaultWriteBuffer = 16 << 20
	DefaultDataChunk   = 10000
)

var (
	ErrNotOpen    = errors.New("record store is not open")
	ErrReadOnly   = errors.New("record store is open read-only")
	ErrWrongWidth = errors.New("element width does not match the record kind")
	ErrShape      = errors.New("buffer length is not a whole number of records")
)

// Option configures a Store.
type Option func(*Store)

// WithFilesystem selects the filesystem holding the backing file.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Store) { s.fs = fs }
}

// WithWriteBuffer sets the write-behind threshold in bytes. Zero writes
// every save through immediately.
func WithWriteBuffer(n int64) Option {
	return func(s *Store) {
		if n >= 0 {
			s.writeBuffer = n
		}
	}
}

// WithDataChunk sets the file growth granularity in records.
func WithDataChunk(records uint64) Option {
	return func(s *Store) {
		if records > 0 {
			s.dataChunk = records
		}
	}
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is a disk-backed record store. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	log         logger.Logger
	fs          billy.Filesystem
	writeBuffer int64
	dataChunk   uint64
	metrics     *Metrics

	path   string
	file   billy.File
	writer io.WriterAt
	mode   Mode

	kind       RecordKind
	kindSet    bool
	kindLocked bool

	// medium is the logical size in records of what has reached the file;
	// physical is the record capacity the file has been grown to.
	medium   uint64
	physical uint64

	queue  []pending
	queued int64

	alloc     *alloc.Allocator
	allocSeen uint64
}

type pending struct {
	pos  uint64
	data []byte
}

func (p pending) end(recordBytes int) uint64 {
	return p.pos + uint64(len(p.data)/recordBytes)
}

// New creates a closed store.
func New(log logger.Logger, opts ...Option) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		log:         log,
		writeBuffer: DefaultWriteBuffer,
		dataChunk:   DefaultDataChunk,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) resolve(path string) (billy.Filesystem, string, error) {
	if s.fs != nil {
		return s.fs, path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return osfs.New(filepath.Dir(abs)), filepath.Base(abs), nil
}

// Open opens the backing file. It reports true without doing anything if
// the store is already open. ReadWrite creates a missing file; ReadOnly
// fails with mderrors.ErrFileAccess when the file does not exist.
func (s *Store) Open(path string, mode Mode) (alreadyOpen bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return true, nil
	}

	fs, name, err := s.resolve(path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", mderrors.ErrFileAccess, path, err)
	}
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := fs.OpenFile(name, flag, 0o644)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s %s: %w", mderrors.ErrFileAccess, path, mode, err)
	}

	if err := s.adopt(f); err != nil {
		return false, multierr.Append(err, f.Close())
	}

	s.path = path
	s.file = f
	s.mode = mode
	if mode == ReadWrite {
		s.writer = binpkg.WriterAt(f)
	}
	s.alloc = nil
	s.log.Infof("opened record store %s %s, %d records", path, mode, s.medium)
	return false, nil
}

// adopt reads the header of an existing file.
func (s *Store) adopt(f billy.File) error {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("%w: %w", mderrors.ErrFileAccess, err)
	}
	s.medium, s.physical = 0, 0
	s.kindLocked = false
	if size == 0 {
		return nil
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return fmt.Errorf("%w: reading header: %w", mderrors.ErrFileAccess, err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", mderrors.ErrFormat, err)
	}
	if s.kindSet && (s.kind.ElementWidth != h.kind.ElementWidth || s.kind.Fields != h.kind.Fields) {
		return fmt.Errorf("%w: file holds %v, store declared %v", mderrors.ErrFormat, h.kind, s.kind)
	}

	s.kind, s.kindSet, s.kindLocked = h.kind, true, true
	s.medium = h.records
	s.physical = uint64(size-HeaderSize) / uint64(h.kind.RecordBytes())
	return nil
}

// SetRecordKind declares the record layout. The element width and field
// count cannot change once data has been written or the file was opened
// with a recorded kind.
func (s *Store) SetRecordKind(k RecordKind) error {
	if err := k.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kindLocked && (k.ElementWidth != s.kind.ElementWidth || k.Fields != s.kind.Fields) {
		return fmt.Errorf("%w: store holds %v", ErrKindLocked, s.kind)
	}
	s.kind, s.kindSet = k, true
	return nil
}

// RecordKind returns the declared record layout.
func (s *Store) RecordKind() (RecordKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind, s.kindSet
}

// SaveFloat32 queues buf for writing at record position.
func (s *Store) SaveFloat32(buf []float32, position uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSave(4, len(buf)); err != nil {
		return err
	}
	data := make([]byte, 4*len(buf))
	for i, v := range buf {
		binpkg.Order.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return s.enqueue(position, data)
}

// SaveFloat64 queues buf for writing at record position.
func (s *Store) SaveFloat64(buf []float64, position uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSave(8, len(buf)); err != nil {
		return err
	}
	return s.enqueue(position, encode64(buf))
}

// SaveRecords queues buf at record position, converting to the declared
// element width.
func (s *Store) SaveRecords(buf []float64, position uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSave(s.kind.ElementWidth, len(buf)); err != nil {
		return err
	}
	if s.kind.ElementWidth == 8 {
		return s.enqueue(position, encode64(buf))
	}
	data := make([]byte, 4*len(buf))
	for i, v := range buf {
		binpkg.Order.PutUint32(data[4*i:], math.Float32bits(float32(v)))
	}
	return s.enqueue(position, data)
}

func encode64(buf []float64) []byte {
	data := make([]byte, 8*len(buf))
	for i, v := range buf {
		binpkg.Order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return data
}

func (s *Store) checkSave(width, n int) error {
	if err := s.checkAccess(width); err != nil {
		return err
	}
	if s.mode != ReadWrite {
		return ErrReadOnly
	}
	if n%s.kind.Fields != 0 {
		return fmt.Errorf("%w: %d values, %d fields per record", ErrShape, n, s.kind.Fields)
	}
	return nil
}

func (s *Store) checkAccess(width int) error {
	if s.file == nil {
		return ErrNotOpen
	}
	if !s.kindSet {
		return ErrNoKind
	}
	if width != s.kind.ElementWidth {
		return fmt.Errorf("%w: store holds %d-byte elements, got %d", ErrWrongWidth, s.kind.ElementWidth, width)
	}
	return nil
}

func (s *Store) enqueue(position uint64, data []byte) error {
	s.metrics.saved()
	if len(data) == 0 {
		return nil
	}
	s.queue = append(s.queue, pending{pos: position, data: data})
	s.queued += int64(len(data))
	s.kindLocked = true
	s.metrics.queued(s.queued)

	if s.queued > s.writeBuffer {
		return s.flushQueue()
	}
	return nil
}

// LoadFloat32 reads count records starting at record position.
func (s *Store) LoadFloat32(position, count uint64) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAccess(4); err != nil {
		return nil, err
	}
	raw, err := s.load(position, count)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binpkg.Order.Uint32(raw[4*i:]))
	}
	return out, nil
}

// LoadFloat64 reads count records starting at record position.
func (s *Store) LoadFloat64(position, count uint64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAccess(8); err != nil {
		return nil, err
	}
	raw, err := s.load(position, count)
	if err != nil {
		return nil, err
	}
	return decode64(raw), nil
}

// LoadRecords reads count records at position as float64 values whatever
// the declared element width.
func (s *Store) LoadRecords(position, count uint64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAccess(s.kind.ElementWidth); err != nil {
		return nil, err
	}
	raw, err := s.load(position, count)
	if err != nil {
		return nil, err
	}
	if s.kind.ElementWidth == 8 {
		return decode64(raw), nil
	}
	out := make([]float64, len(raw)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binpkg.Order.Uint32(raw[4*i:])))
	}
	return out, nil
}

func decode64(raw []byte) []float64 {
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binpkg.Order.Uint64(raw[8*i:]))
	}
	return out
}

// load reads the file range and overlays queued saves in queue order.
func (s *Store) load(position, count uint64) ([]byte, error) {
	rb := uint64(s.kind.RecordBytes())
	buf := make([]byte, count*rb)
	if count == 0 {
		return buf, nil
	}

	if position < s.physical {
		off := int64(HeaderSize + position*rb)
		if _, err := s.file.ReadAt(buf, off); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: reading %d records at %d: %w", mderrors.ErrFileAccess, count, position, err)
		}
	}

	end := position + count
	for _, p := range s.queue {
		pend := p.end(int(rb))
		if p.pos >= end || pend <= position {
			continue
		}
		from := max(p.pos, position)
		to := min(pend, end)
		copy(buf[(from-position)*rb:(to-position)*rb], p.data[(from-p.pos)*rb:(to-p.pos)*rb])
	}

	s.metrics.loaded(len(buf))
	return buf, nil
}

// flushQueue writes queued saves to the file in order, first growing the
// file to a whole number of data chunks.
func (s *Store) flushQueue() error {
	if len(s.queue) == 0 {
		return nil
	}
	start := time.Now()
	rb := s.kind.RecordBytes()

	var end uint64
	for _, p := range s.queue {
		end = max(end, p.end(rb))
	}
	if end > s.physical {
		grown := (end + s.dataChunk - 1) / s.dataChunk * s.dataChunk
		if err := s.file.Truncate(int64(HeaderSize + grown*uint64(rb))); err != nil {
			return fmt.Errorf("%w: growing %s: %w", mderrors.ErrFileAccess, s.path, err)
		}
		s.physical = grown
	}

	var written int64
	for _, p := range s.queue {
		if _, err := s.writer.WriteAt(p.data, int64(HeaderSize+p.pos*uint64(rb))); err != nil {
			return fmt.Errorf("%w: writing %s at record %d: %w", mderrors.ErrFileAccess, s.path, p.pos, err)
		}
		written += int64(len(p.data))
	}

	s.medium = max(s.medium, end)
	n := len(s.queue)
	s.queue = nil
	s.queued = 0
	s.metrics.flushed(written, start)
	s.log.Debugf("flushed %d blocks, %d bytes to %s", n, written, s.path)
	return nil
}

func (s *Store) writeHeader() error {
	if !s.kindSet {
		return nil
	}
	h := header{kind: s.kind, records: s.medium}
	if _, err := s.writer.WriteAt(h.encode(), 0); err != nil {
		return fmt.Errorf("%w: writing header of %s: %w", mderrors.ErrFileAccess, s.path, err)
	}
	return nil
}

func (s *Store) sync() error {
	if f, ok := s.file.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

// Flush writes every queued save and the header, then syncs the file.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrNotOpen
	}
	if s.mode != ReadWrite {
		return nil
	}
	if err := s.flushQueue(); err != nil {
		return err
	}
	if err := s.writeHeader(); err != nil {
		return err
	}
	return s.sync()
}

// Close flushes a writable store and closes the file. Closing a closed
// store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	var err error
	if s.mode == ReadWrite {
		err = s.flushQueue()
		if err == nil {
			err = s.writeHeader()
		}
		err = multierr.Append(err, s.sync())
	}
	err = multierr.Append(err, s.file.Close())

	s.log.Debugf("closed record store %s, %d records", s.path, s.medium)
	s.file, s.writer = nil, nil
	s.queue, s.queued = nil, 0
	s.medium, s.physical = 0, 0
	s.kindLocked = false
	s.alloc = nil
	s.metrics.queued(0)
	return err
}

// IsOpen reports whether the backing file is open.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

// Path returns the path given to Open.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Size returns the logical size in records: the larger of what reached the
// file and the furthest queued save.
func (s *Store) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size()
}

func (s *Store) size() uint64 {
	n := s.medium
	if len(s.queue) > 0 {
		rb := s.kind.RecordBytes()
		for _, p := range s.queue {
			n = max(n, p.end(rb))
		}
	}
	return n
}

// DataChunk returns the file growth granularity in records.
func (s *Store) DataChunk() uint64 {
	return s.dataChunk
}

// Allocate reserves count records and returns their position. Freed ranges
// are reused first fit before the store grows.
func (s *Store) Allocate(count uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocator().Alloc(count)
}

// Free returns a record range to the store for reuse by Allocate.
func (s *Store) Free(position, count uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocator().Free(position, count)
}

func (s *Store) allocator() *alloc.Allocator {
	if s.alloc == nil {
		s.alloc, s.allocSeen = alloc.New(0), 0
	}
	// Records saved at caller-chosen positions are in use.
	if n := s.size(); n > s.allocSeen {
		s.alloc.ExtendTo(n)
		s.allocSeen = n
	}
	return s.alloc
}
