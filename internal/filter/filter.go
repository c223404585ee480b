// Package filter implements the byte transforms applied to column payloads
// before they are stored.
package filter

import (
	"fmt"
)

// Filter identifiers stored in the catalog.
const (
	IDShuffle    uint16 = 2
	IDFletcher32 uint16 = 3
	IDZstd       uint16 = 32015
)

// Filter is the interface implemented by all column filters.
type Filter interface {
	// ID returns the filter identifier.
	ID() uint16

	// Encode transforms raw data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode transforms stored data back to its raw form.
	Decode(input []byte) ([]byte, error)
}

// Spec is the persisted description of one pipeline stage.
type Spec struct {
	ID     uint16   `cbor:"1,keyasint"`
	Params []uint32 `cbor:"2,keyasint,omitempty"`
}

// Registry maps filter IDs to filter constructors.
var Registry = map[uint16]func([]uint32) (Filter, error){
	IDShuffle:    func(p []uint32) (Filter, error) { return NewShuffle(p), nil },
	IDFletcher32: func(p []uint32) (Filter, error) { return NewFletcher32(p), nil },
	IDZstd:       func(p []uint32) (Filter, error) { return NewZstd(p) },
}

// filterNames maps known filter IDs to their names for better error messages.
var filterNames = map[uint16]string{
	IDShuffle:    "shuffle",
	IDFletcher32: "fletcher32",
	IDZstd:       "zstd",
}

// Name returns a human readable name for a filter id.
func Name(id uint16) string {
	if name, ok := filterNames[id]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", id)
}

// New creates a filter from a Spec.
func New(spec Spec) (Filter, error) {
	constructor, ok := Registry[spec.ID]
	if !ok {
		return nil, fmt.Errorf("unsupported filter ID: %d", spec.ID)
	}
	return constructor(spec.Params)
}
