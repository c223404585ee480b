// Package superblock reads and writes the fixed header at offset 0 of a
// box container file.
//
// The superblock carries the file identity, the logical end of file and the
// location of the catalog that describes every group, attribute and column.
package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

// Signature identifies a box container: 0x89 B X F \r \n 0x1a \n
var Signature = []byte{0x89, 'B', 'X', 'F', '\r', '\n', 0x1a, '\n'}

// Version is the only superblock layout this package writes.
const Version = 1

// Size is the encoded superblock length in bytes:
// Signature(8) + Version(1) + OffsetSize(1) + LengthSize(1) + Flags(1) +
// FileID(16) + EOF(8) + CatalogAddr(8) + CatalogSize(8) + Checksum(4)
const Size = 12 + 16 + 3*8 + 4

// Flag bits.
const (
	// FlagOpenForWrite is set while a writer holds the file and cleared by a
	// clean close.
	FlagOpenForWrite uint8 = 1 << 0
)

// Errors
var (
	ErrNotContainer       = errors.New("not a box container: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

// Superblock contains the container file metadata.
type Superblock struct {
	Version uint8

	// Flags holds file consistency bits (FlagOpenForWrite).
	Flags uint8

	// FileID identifies the file across renames and copies.
	FileID uuid.UUID

	// EOFAddress is the logical end of file.
	EOFAddress uint64

	// CatalogAddress and CatalogSize locate the encoded catalog.
	// CatalogAddress is binary.Undefined until the first flush.
	CatalogAddress uint64
	CatalogSize    uint64
}

// New creates a superblock for a fresh file with a random identity.
func New() *Superblock {
	return &Superblock{
		Version:        Version,
		FileID:         uuid.New(),
		EOFAddress:     Size,
		CatalogAddress: binpkg.Undefined,
	}
}

// HasCatalog reports whether a catalog has been written.
func (sb *Superblock) HasCatalog() bool {
	return sb.CatalogAddress != binpkg.Undefined
}

// Read parses and verifies the superblock at offset 0.
func Read(r io.ReaderAt) (*Superblock, error) {
	buf := make([]byte, Size)
	n, err := r.ReadAt(buf, 0)
	if n < len(Signature) || !bytes.Equal(buf[:len(Signature)], Signature) {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrNotContainer
	}
	if buf[8] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, buf[8])
	}
	if n < Size {
		return nil, fmt.Errorf("%w: truncated at %d bytes", ErrInvalidSuperblock, n)
	}

	stored := binpkg.Order.Uint32(buf[Size-4:])
	if !binpkg.VerifyLookup3(buf[:Size-4], stored) {
		return nil, ErrChecksum
	}

	br := binpkg.NewReader(binpkg.NewBuffer(buf)).At(int64(len(Signature)))
	sb := &Superblock{}
	if sb.Version, err = br.ReadUint8(); err != nil {
		return nil, err
	}
	offsetSize, _ := br.ReadUint8()
	lengthSize, _ := br.ReadUint8()
	if offsetSize != 8 || lengthSize != 8 {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, offsetSize, lengthSize)
	}
	sb.Flags, _ = br.ReadUint8()

	id, err := br.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	copy(sb.FileID[:], id)

	if sb.EOFAddress, err = br.ReadUint64(); err != nil {
		return nil, err
	}
	if sb.CatalogAddress, err = br.ReadUint64(); err != nil {
		return nil, err
	}
	if sb.CatalogSize, err = br.ReadUint64(); err != nil {
		return nil, err
	}
	if sb.EOFAddress < Size {
		return nil, fmt.Errorf("%w: EOF 0x%x inside superblock", ErrInvalidSuperblock, sb.EOFAddress)
	}
	return sb, nil
}
