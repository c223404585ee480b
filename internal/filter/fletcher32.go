package filter

import (
	"errors"
	"fmt"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

var errFletcherShort = errors.New("fletcher32: stored data shorter than its checksum")

// Fletcher32Filter frames stored column bytes with a trailing Fletcher-32
// checksum.
type Fletcher32Filter struct{}

// NewFletcher32 returns the checksum filter. It takes no parameters.
func NewFletcher32(params []uint32) *Fletcher32Filter {
	return &Fletcher32Filter{}
}

func (f *Fletcher32Filter) ID() uint16 { return IDFletcher32 }

func (f *Fletcher32Filter) Encode(input []byte) ([]byte, error) {
	return binpkg.AppendFletcher32(input), nil
}

func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, errFletcherShort
	}
	data, stored, ok := binpkg.SplitFletcher32(input)
	if !ok {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored=0x%08x, computed=0x%08x)",
			stored, binpkg.Fletcher32(data))
	}
	return data, nil
}
