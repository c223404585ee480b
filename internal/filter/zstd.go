package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultZstdLevel is used when a zstd spec carries no level.
const DefaultZstdLevel = 3

// decoder is shared; DecodeAll is safe for concurrent use.
var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return decoder, decoderErr
}

// Zstd implements zstandard compression of column payloads.
type Zstd struct {
	level   int
	encoder *zstd.Encoder
}

// NewZstd creates a zstd filter.
// Params: [0] = zstd compression level (1-22, default 3)
func NewZstd(params []uint32) (*Zstd, error) {
	level := DefaultZstdLevel
	if len(params) > 0 && params[0] > 0 {
		level = int(params[0])
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Zstd{level: level, encoder: encoder}, nil
}

func (f *Zstd) ID() uint16 {
	return IDZstd
}

// Level returns the configured zstd level.
func (f *Zstd) Level() int {
	return f.level
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	return f.encoder.EncodeAll(input, make([]byte, 0, len(input)/2+64)), nil
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	d, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	out, err := d.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
