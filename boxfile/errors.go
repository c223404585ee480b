// Package boxfile implements a self-describing container file of named
// groups, attributes and resizable columns.
package boxfile

import (
	"errors"

	"github.com/robert-malhotra/go-boxtree/internal/superblock"
)

// Common errors
var (
	ErrNotContainer = superblock.ErrNotContainer
	ErrNotFound     = errors.New("object not found")
	ErrNotGroup     = errors.New("object is not a group")
	ErrNotColumn    = errors.New("object is not a column")
	ErrExists       = errors.New("object already exists")
	ErrInvalidPath  = errors.New("invalid path")
	ErrInvalidShape = errors.New("data length is not a multiple of the row width")
	ErrReadOnly     = errors.New("file is open read-only")
	ErrClosed       = errors.New("file is closed")
	ErrChecksum     = errors.New("column checksum mismatch")
)
