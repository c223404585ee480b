package superblock

import (
	binpkg "github.com/robert-malhotra/go-boxtree/internal/binary"
)

// Encode returns the checksummed on-disk form of the superblock.
func (sb *Superblock) Encode() []byte {
	buf := binpkg.NewBuffer(make([]byte, 0, Size))
	bw := binpkg.NewWriter(buf)

	// Writes into a Buffer cannot fail.
	_ = bw.WriteBytes(Signature)
	_ = bw.WriteUint8(Version)
	_ = bw.WriteUint8(8) // offset size
	_ = bw.WriteUint8(8) // length size
	_ = bw.WriteUint8(sb.Flags)
	_ = bw.WriteBytes(sb.FileID[:])
	_ = bw.WriteAddress(sb.EOFAddress)
	_ = bw.WriteAddress(sb.CatalogAddress)
	_ = bw.WriteUint64(sb.CatalogSize)

	checksum := binpkg.Lookup3Checksum(buf.Bytes()[:bw.Pos()])
	_ = bw.WriteUint32(checksum)

	return buf.Bytes()
}

// Write writes the superblock at the writer's position and returns the
// number of bytes written.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	start := w.Pos()
	if err := w.WriteBytes(sb.Encode()); err != nil {
		return 0, err
	}
	return w.Pos() - start, nil
}
