package binary

import "math/bits"

// lookup3 is the three-word state of Bob Jenkins' hashlittle.
type lookup3 struct{ a, b, c uint32 }

func (s *lookup3) add(block []byte) {
	s.a += Order.Uint32(block[0:])
	s.b += Order.Uint32(block[4:])
	s.c += Order.Uint32(block[8:])
}

func (s *lookup3) mix() {
	a, b, c := s.a, s.b, s.c
	a -= c
	a ^= bits.RotateLeft32(c, 4)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 6)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 8)
	b += a
	a -= c
	a ^= bits.RotateLeft32(c, 16)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 19)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 4)
	b += a
	s.a, s.b, s.c = a, b, c
}

func (s *lookup3) final() {
	a, b, c := s.a, s.b, s.c
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	s.a, s.b, s.c = a, b, c
}

// Lookup3Checksum computes the Jenkins lookup3 (hashlittle, initval 0) hash
// that protects the superblock, the catalog, record store headers and every
// stored column.
func Lookup3Checksum(data []byte) uint32 {
	init := 0xdeadbeef + uint32(len(data))
	s := lookup3{init, init, init}
	if len(data) == 0 {
		return s.c
	}

	// The last 1 to 12 bytes always go through final, never through mix.
	for len(data) > 12 {
		s.add(data)
		s.mix()
		data = data[12:]
	}
	var tail [12]byte
	copy(tail[:], data)
	s.add(tail[:])
	s.final()
	return s.c
}

// VerifyLookup3 verifies data against an expected lookup3 checksum.
func VerifyLookup3(data []byte, expected uint32) bool {
	return Lookup3Checksum(data) == expected
}

// fletcherBlock is the number of words summed before reducing. It keeps
// both 64-bit sums far from overflow.
const fletcherBlock = 4096

// Fletcher32 computes the Fletcher-32 checksum appended by the column
// checksum filter. Input is read as little-endian 16-bit words and an odd
// trailing byte is zero padded.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint64
	n := 0
	for len(data) > 0 {
		var word uint64
		if len(data) == 1 {
			word = uint64(data[0])
			data = nil
		} else {
			word = uint64(Order.Uint16(data))
			data = data[2:]
		}
		sum1 += word
		sum2 += sum1
		if n++; n == fletcherBlock {
			sum1 %= 65535
			sum2 %= 65535
			n = 0
		}
	}
	return uint32(sum2%65535)<<16 | uint32(sum1%65535)
}

// VerifyFletcher32 verifies data against an expected Fletcher-32 checksum.
func VerifyFletcher32(data []byte, expected uint32) bool {
	return Fletcher32(data) == expected
}

// AppendFletcher32 returns data followed by its little-endian Fletcher-32
// checksum.
func AppendFletcher32(data []byte) []byte {
	out := make([]byte, len(data), len(data)+4)
	copy(out, data)
	return Order.AppendUint32(out, Fletcher32(data))
}

// SplitFletcher32 separates data from a trailing Fletcher-32 checksum and
// reports whether the checksum matches.
func SplitFletcher32(framed []byte) (data []byte, stored uint32, ok bool) {
	if len(framed) < 4 {
		return nil, 0, false
	}
	data = framed[:len(framed)-4]
	stored = Order.Uint32(framed[len(framed)-4:])
	return data, stored, Fletcher32(data) == stored
}
