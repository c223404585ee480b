package mdbox

import (
	"errors"
	"fmt"
)

var (
	ErrNoStore       = errors.New("leaf is not backed by a record store")
	ErrFieldCount    = errors.New("record field count does not match the leaf")
	ErrNotFileBacked = errors.New("leaf is held only in memory")
	ErrShortRecords  = errors.New("record buffer does not hold the recorded count")
	ErrRangeFull     = errors.New("leaf outgrew its record range")
)

// RecordStore is the part of a disk-backed record store a leaf needs.
// Positions and counts are measured in records.
type RecordStore interface {
	SaveRecords(buf []float64, position uint64) error
	LoadRecords(position, count uint64) ([]float64, error)
}

// RangeAllocator is implemented by stores that can hand out fresh record
// ranges. A leaf that outgrows its range is moved to a new one on Save.
type RangeAllocator interface {
	Allocate(count uint64) uint64
	Free(position, count uint64)
}

// Leaf is a box holding a contiguous run of event records, either in memory
// or delegated to a range of a RecordStore.
//
// Each record is Fields float64 values; field 0 is the signal and field 1
// the squared error.
type Leaf struct {
	box

	fields int
	events []float64
	count  uint64

	store      RecordStore
	filePos    uint64
	fileCount  uint64
	fileBacked bool
	saved      bool
	resident   bool
}

// NewLeaf returns an empty in-memory leaf.
func NewLeaf(depth int, extents []Extent) *Leaf {
	return &Leaf{box: newBox(depth, extents), resident: true}
}

func (l *Leaf) Kind() Kind { return KindLeaf }

// TotalDataSize returns the number of events in the leaf.
func (l *Leaf) TotalDataSize() uint64 { return l.count }

// NumFields returns the number of values per record, or 0 before any records
// have been seen.
func (l *Leaf) NumFields() int { return l.fields }

// AddEvents appends records to the leaf and accumulates their signal and
// squared error. A file-backed leaf is loaded first.
func (l *Leaf) AddEvents(records []float64, fields int) error {
	if fields < 2 || len(records)%fields != 0 {
		return fmt.Errorf("%w: %d values with %d fields", ErrFieldCount, len(records), fields)
	}
	if l.fields != 0 && l.fields != fields {
		return fmt.Errorf("%w: leaf has %d fields, got %d", ErrFieldCount, l.fields, fields)
	}
	if len(records) == 0 {
		return nil
	}
	if !l.resident {
		if _, err := l.Events(); err != nil {
			return err
		}
	}
	l.fields = fields
	for i := 0; i < len(records); i += fields {
		l.signal += records[i]
		l.errorSq += records[i+1]
	}
	l.events = append(l.events, records...)
	l.count += uint64(len(records) / fields)
	l.saved = false
	return nil
}

// Events returns the leaf's records, loading them from the store when the
// leaf is file-backed and not resident.
func (l *Leaf) Events() ([]float64, error) {
	if l.resident {
		return l.events, nil
	}
	if l.store == nil {
		return nil, ErrNoStore
	}
	if l.count == 0 {
		l.resident = true
		return l.events, nil
	}
	buf, err := l.store.LoadRecords(l.filePos, l.count)
	if err != nil {
		return nil, fmt.Errorf("load leaf %d: %w", l.id, err)
	}
	if uint64(len(buf))%l.count != 0 {
		return nil, fmt.Errorf("%w: %d values for %d records", ErrShortRecords, len(buf), l.count)
	}
	l.fields = len(buf) / int(l.count)
	l.events = buf
	l.resident = true
	l.saved = true
	return l.events, nil
}

// SetFileBacked delegates the leaf's records to the range
// [position, position+count) of store. Unless markAlreadySaved is set, the
// resident records are written to that range first. Either way a leaf
// holding records must match count. store may be nil for a leaf that only
// carries its addressing.
func (l *Leaf) SetFileBacked(store RecordStore, position, count uint64, markAlreadySaved bool) error {
	if !markAlreadySaved {
		if store == nil {
			return ErrNoStore
		}
		if !l.resident {
			if _, err := l.Events(); err != nil {
				return err
			}
		}
		if count != l.count {
			return fmt.Errorf("%w: range of %d records for a leaf of %d", ErrShortRecords, count, l.count)
		}
		if count > 0 {
			if err := store.SaveRecords(l.events, position); err != nil {
				return fmt.Errorf("save leaf %d: %w", l.id, err)
			}
		}
	}
	if markAlreadySaved && l.resident && len(l.events) > 0 && count != l.count {
		return fmt.Errorf("%w: range of %d records for a leaf of %d", ErrShortRecords, count, l.count)
	}
	if !l.resident || (markAlreadySaved && len(l.events) == 0) {
		l.count = count
		l.resident = count == 0
	}
	l.store = store
	l.filePos = position
	l.fileCount = count
	l.fileBacked = true
	l.saved = true
	return nil
}

// FileRange returns the leaf's delegated record range. The position is
// meaningless unless IsFileBacked.
func (l *Leaf) FileRange() (position, count uint64) {
	return l.filePos, l.count
}

func (l *Leaf) IsFileBacked() bool { return l.fileBacked }

// IsSaved reports whether the store holds every record of the leaf.
func (l *Leaf) IsSaved() bool { return l.fileBacked && l.saved }

// InMemory reports whether the records are resident.
func (l *Leaf) InMemory() bool { return l.resident }

// Save writes resident records that changed since the last save. A leaf that
// grew beyond its range is moved to a fresh range when the store can
// allocate one.
func (l *Leaf) Save() error {
	if !l.fileBacked {
		return ErrNoStore
	}
	if l.saved || !l.resident {
		return nil
	}
	if l.store == nil {
		return ErrNoStore
	}
	if l.count > l.fileCount {
		ra, ok := l.store.(RangeAllocator)
		if !ok {
			return fmt.Errorf("%w: leaf %d has %d records in a range of %d", ErrRangeFull, l.id, l.count, l.fileCount)
		}
		if l.fileCount > 0 {
			ra.Free(l.filePos, l.fileCount)
		}
		l.filePos = ra.Allocate(l.count)
	}
	if err := l.store.SaveRecords(l.events, l.filePos); err != nil {
		return fmt.Errorf("save leaf %d: %w", l.id, err)
	}
	l.fileCount = l.count
	l.saved = true
	return nil
}

// ClearMemory drops the resident records of a file-backed leaf, saving them
// first if needed.
func (l *Leaf) ClearMemory() error {
	if !l.fileBacked {
		if l.count == 0 {
			return nil
		}
		return ErrNotFileBacked
	}
	if err := l.Save(); err != nil {
		return err
	}
	l.events = nil
	l.resident = l.count == 0
	return nil
}
