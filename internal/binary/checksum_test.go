package binary

import (
	"testing"
)

func TestLookup3Checksum(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x00}},
		{"superblock sized", make([]byte, 68)},
		{"12 bytes exactly", []byte("box_children")},
		{"13 bytes", []byte("box_event_idx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result1 := Lookup3Checksum(tt.input)
			result2 := Lookup3Checksum(tt.input)
			if result1 != result2 {
				t.Errorf("Lookup3Checksum not consistent: got 0x%08x then 0x%08x",
					result1, result2)
			}
		})
	}
}

func TestLookup3EmptyIsSeed(t *testing.T) {
	// With no input the hash is the untouched seed.
	if got := Lookup3Checksum(nil); got != 0xdeadbeef {
		t.Errorf("Lookup3Checksum(nil) = 0x%08x, want 0xdeadbeef", got)
	}
}

func TestLookup3ChecksumLengthVariations(t *testing.T) {
	checksums := make(map[uint32]int)

	for length := 0; length <= 24; length++ {
		data := make([]byte, length)
		for i := range data {
			data[i] = byte(i)
		}
		checksums[Lookup3Checksum(data)] = length
	}

	if len(checksums) != 25 {
		t.Errorf("expected 25 unique checksums for lengths 0-24, got %d", len(checksums))
	}
}

func TestLookup3DetectsSingleBitFlip(t *testing.T) {
	data := []byte("extents inverse_volume depth box_type")
	want := Lookup3Checksum(data)
	for i := range data {
		flipped := append([]byte(nil), data...)
		flipped[i] ^= 0x01
		if Lookup3Checksum(flipped) == want {
			t.Fatalf("bit flip at byte %d not detected", i)
		}
	}
}

func TestFletcher32(t *testing.T) {
	if result := Fletcher32([]byte{}); result != 0 {
		t.Errorf("Fletcher32(empty) should be 0, got 0x%08x", result)
	}

	// One word 0x0201: sum1 = 0x0201, sum2 = 0x0201.
	if got, want := Fletcher32([]byte{0x01, 0x02}), uint32(0x02010201); got != want {
		t.Errorf("Fletcher32 = 0x%08x, want 0x%08x", got, want)
	}
}

func TestFletcher32OddLength(t *testing.T) {
	odd := []byte{0x01, 0x02, 0x03}
	even := []byte{0x01, 0x02, 0x03, 0x00}

	if Fletcher32(odd) != Fletcher32(even) {
		t.Errorf("Fletcher32 should pad odd-length input: odd=0x%08x, even=0x%08x",
			Fletcher32(odd), Fletcher32(even))
	}
}

func TestVerify(t *testing.T) {
	data := []byte("test data for verification")

	if cs := Fletcher32(data); !VerifyFletcher32(data, cs) || VerifyFletcher32(data, cs+1) {
		t.Error("VerifyFletcher32 disagrees with Fletcher32")
	}
	if cs := Lookup3Checksum(data); !VerifyLookup3(data, cs) || VerifyLookup3(data, cs+1) {
		t.Error("VerifyLookup3 disagrees with Lookup3Checksum")
	}
}

func BenchmarkLookup3Checksum(b *testing.B) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Lookup3Checksum(data)
	}
}

func TestFletcher32MatchesPerWordReduction(t *testing.T) {
	data := make([]byte, 3*fletcherBlock*2+7)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}
	var sum1, sum2 uint32
	for i := 0; i < len(data); i += 2 {
		word := uint32(data[i])
		if i+1 < len(data) {
			word |= uint32(data[i+1]) << 8
		}
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}
	if got, want := Fletcher32(data), sum2<<16|sum1; got != want {
		t.Errorf("Fletcher32 = 0x%08x, want 0x%08x", got, want)
	}
}

func TestSplitFletcher32(t *testing.T) {
	framed := AppendFletcher32([]byte("signal"))
	data, _, ok := SplitFletcher32(framed)
	if !ok || string(data) != "signal" {
		t.Fatalf("SplitFletcher32 = %q, %v", data, ok)
	}
	framed[0] ^= 0xff
	if _, _, ok := SplitFletcher32(framed); ok {
		t.Error("corrupted frame accepted")
	}
	if _, _, ok := SplitFletcher32([]byte{1}); ok {
		t.Error("short frame accepted")
	}
}
