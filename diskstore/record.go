package diskstore

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

// Event record type tags.
const (
	LeanEventType = "MDLeanEvent"
	FullEventType = "MDEvent"
)

// HeaderSize is the length of the header preceding the records.
const HeaderSize = 64

const (
	headerVersion = 1
	maxTypeTag    = 32
)

var signature = []byte{'B', 'X', 'E', 'V'}

var (
	ErrBadHeader  = errors.New("record store header is invalid")
	ErrWidth      = errors.New("element width must be 4 or 8")
	ErrKindLocked = errors.New("element width is fixed once data exists")
	ErrNoKind     = errors.New("record kind not set")
)

// RecordKind describes the fixed-width records held by a store.
type RecordKind struct {
	// ElementWidth is the size of one numeric field: 4 (float32) or 8
	// (float64).
	ElementWidth int
	TypeTag      string
	TypeVersion  uint16
	// Fields is the number of numeric fields per record.
	Fields int
}

// RecordBytes returns the encoded size of one record.
func (k RecordKind) RecordBytes() int {
	return k.ElementWidth * k.Fields
}

// Validate checks the width, field count and tag length.
func (k RecordKind) Validate() error {
	if k.ElementWidth != 4 && k.ElementWidth != 8 {
		return fmt.Errorf("%w: got %d", ErrWidth, k.ElementWidth)
	}
	if k.Fields <= 0 {
		return fmt.Errorf("record must have at least one field, got %d", k.Fields)
	}
	if len(k.TypeTag) > maxTypeTag {
		return fmt.Errorf("type tag %q longer than %d bytes", k.TypeTag, maxTypeTag)
	}
	return nil
}

func (k RecordKind) String() string {
	return fmt.Sprintf("%s v%d (%d x %d bytes)", k.TypeTag, k.TypeVersion, k.Fields, k.ElementWidth)
}

// EventRecordKind returns the record layout of an event type.
//
// Lean events hold signal, error squared and dims coordinates. Full events
// add a run index and a detector id, and from version 2 a goniometer index.
func EventRecordKind(typeTag string, dims, width int, version uint16) (RecordKind, error) {
	if dims <= 0 {
		return RecordKind{}, fmt.Errorf("dimension count must be positive, got %d", dims)
	}
	k := RecordKind{ElementWidth: width, TypeTag: typeTag, TypeVersion: version}
	switch {
	case strings.HasPrefix(typeTag, LeanEventType):
		k.Fields = dims + 2
	case strings.HasPrefix(typeTag, FullEventType):
		k.Fields = dims + 4
		if version >= 2 {
			k.Fields++
		}
	default:
		return RecordKind{}, fmt.Errorf("unknown event type %q", typeTag)
	}
	return k, k.Validate()
}

// header is the on-disk preamble:
//
//	Offset  Size  Field
//	0       4     signature "BXEV"
//	4       2     header version
//	6       1     element width
//	7       1     type tag length
//	8       4     fields per record
//	12      2     type version
//	14      2     reserved
//	16      32    type tag, zero padded
//	48      8     logical size in records
//	56      4     reserved
//	60      4     lookup3 checksum of bytes 0-59
type header struct {
	kind    RecordKind
	records uint64
}

func (h header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, signature)
	binpkg.Order.PutUint16(buf[4:], headerVersion)
	buf[6] = uint8(h.kind.ElementWidth)
	buf[7] = uint8(len(h.kind.TypeTag))
	binpkg.Order.PutUint32(buf[8:], uint32(h.kind.Fields))
	binpkg.Order.PutUint16(buf[12:], h.kind.TypeVersion)
	copy(buf[16:16+maxTypeTag], h.kind.TypeTag)
	binpkg.Order.PutUint64(buf[48:], h.records)
	binpkg.Order.PutUint32(buf[60:], binpkg.Lookup3Checksum(buf[:60]))
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize || !bytes.Equal(buf[:4], signature) {
		return header{}, fmt.Errorf("%w: signature not found", ErrBadHeader)
	}
	if !binpkg.VerifyLookup3(buf[:60], binpkg.Order.Uint32(buf[60:])) {
		return header{}, fmt.Errorf("%w: checksum mismatch", ErrBadHeader)
	}
	if v := binpkg.Order.Uint16(buf[4:]); v != headerVersion {
		return header{}, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	tagLen := int(buf[7])
	if tagLen > maxTypeTag {
		return header{}, fmt.Errorf("%w: type tag length %d", ErrBadHeader, tagLen)
	}
	h := header{
		kind: RecordKind{
			ElementWidth: int(buf[6]),
			Fields:       int(binpkg.Order.Uint32(buf[8:])),
			TypeVersion:  binpkg.Order.Uint16(buf[12:]),
			TypeTag:      string(buf[16 : 16+tagLen]),
		},
		records: binpkg.Order.Uint64(buf[48:]),
	}
	if err := h.kind.Validate(); err != nil {
		return header{}, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	return h, nil
}
