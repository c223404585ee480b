package filter

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

func TestShuffleUnshuffle(t *testing.T) {
	// Original: [A0 A1 A2 A3] [B0 B1 B2 B3] [C0 C1 C2 C3] [D0 D1 D2 D3]
	// Shuffled: [A0 B0 C0 D0] [A1 B1 C1 D1] [A2 B2 C2 D2] [A3 B3 C3 D3]
	original := []byte{
		0x01, 0x02, 0x03, 0x04, // Element 0
		0x11, 0x12, 0x13, 0x14, // Element 1
		0x21, 0x22, 0x23, 0x24, // Element 2
		0x31, 0x32, 0x33, 0x34, // Element 3
	}
	shuffled := []byte{
		0x01, 0x11, 0x21, 0x31, // All byte 0s
		0x02, 0x12, 0x22, 0x32, // All byte 1s
		0x03, 0x13, 0x23, 0x33, // All byte 2s
		0x04, 0x14, 0x24, 0x34, // All byte 3s
	}

	f := NewShuffle([]uint32{4})
	enc, err := f.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(enc, shuffled) {
		t.Errorf("Shuffled data mismatch:\ngot:  %v\nwant: %v", enc, shuffled)
	}

	dec, err := f.Decode(shuffled)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(dec, original) {
		t.Errorf("Unshuffled data mismatch:\ngot:  %v\nwant: %v", dec, original)
	}
}

func TestShuffleTrailingBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	f := NewShuffle([]uint32{4})
	enc, _ := f.Encode(data)
	dec, _ := f.Decode(enc)
	if !bytes.Equal(dec, data) {
		t.Errorf("trailing bytes lost: %v", dec)
	}
	if !bytes.Equal(enc[8:], []byte{9, 10}) {
		t.Errorf("trailing bytes moved: %v", enc)
	}
}

func TestShuffleSingleByte(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	f := NewShuffle([]uint32{1})

	result, err := f.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(result, data) {
		t.Errorf("Single-byte shuffle should be identity")
	}
}

func TestFletcher32Roundtrip(t *testing.T) {
	data := []byte("test data for checksum")
	f := NewFletcher32(nil)

	enc, err := f.Encode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != len(data)+4 {
		t.Fatalf("encoded length %d", len(enc))
	}
	if got := binary.LittleEndian.Uint32(enc[len(data):]); got != binpkg.Fletcher32(data) {
		t.Errorf("stored checksum 0x%08x", got)
	}

	output, err := f.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(output, data) {
		t.Errorf("Output mismatch:\ngot:  %v\nwant: %v", output, data)
	}
}

func TestFletcher32Invalid(t *testing.T) {
	data := []byte("test data for checksum")
	input := append(append([]byte(nil), data...), 0xDE, 0xAD, 0xBE, 0xEF)

	if _, err := NewFletcher32(nil).Decode(input); err == nil {
		t.Error("Expected error for invalid checksum")
	}
	if _, err := NewFletcher32(nil).Decode([]byte{1, 2}); err == nil {
		t.Error("Expected error for short input")
	}
}

func TestZstdRoundtrip(t *testing.T) {
	f, err := NewZstd([]uint32{5})
	if err != nil {
		t.Fatal(err)
	}
	if f.Level() != 5 {
		t.Errorf("level = %d", f.Level())
	}

	original := bytes.Repeat([]byte("box_signal_errorsquared "), 200)
	enc, err := f.Encode(original)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) >= len(original) {
		t.Errorf("repetitive input did not compress: %d >= %d", len(enc), len(original))
	}
	dec, err := f.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, original) {
		t.Error("zstd roundtrip mismatch")
	}

	if _, err := f.Decode([]byte("not zstd")); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestPipelineEmpty(t *testing.T) {
	p, err := NewPipeline(nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if !p.Empty() {
		t.Error("Expected empty pipeline")
	}

	data := []byte("unchanged")
	enc, _ := p.Encode(data)
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("Empty pipeline should pass data through unchanged")
	}
}

func TestPipelineRoundtrip(t *testing.T) {
	p, err := NewPipeline([]Spec{
		{ID: IDShuffle, Params: []uint32{8}},
		{ID: IDZstd},
		{ID: IDFletcher32},
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("expected 3 filters, got %d", p.Len())
	}

	raw := make([]byte, 8*512)
	for i := 0; i < 512; i++ {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(float64(i)*0.25))
	}

	enc, err := p.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := p.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, raw) {
		t.Error("pipeline roundtrip mismatch")
	}

	enc[0] ^= 0xFF
	if _, err := p.Decode(enc); err == nil {
		t.Error("expected checksum failure after corruption")
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	if _, err := NewPipeline([]Spec{{ID: 999}}); err == nil {
		t.Error("expected error for unknown filter")
	}
	if Name(999) != "filter(999)" || Name(IDZstd) != "zstd" {
		t.Errorf("unexpected names %q %q", Name(999), Name(IDZstd))
	}
}
