// Package alloc provides extent allocation for file formats that place
// variable-sized payloads at explicit offsets.
//
// # Allocator
//
// The [Allocator] type is safe for concurrent use and provides:
//
//   - First-fit reuse: freed extents are kept in an address-ordered free
//     list and the first block large enough is split to serve a request.
//   - Coalescing: adjacent free blocks are merged, and a free block that
//     reaches the end of file shrinks the file instead of being listed.
//   - Aligned allocation: the padding skipped to reach an alignment boundary
//     is itself recorded as free space.
//   - Persistence: [Allocator.FreeBlocks] and [Restore] let a file format
//     save the free list and resume reuse after reopening.
//
// Addresses are unit-agnostic. The container counts bytes and the record
// store counts records.
//
// # Usage
//
//	a := alloc.New(64)     // first usable address after a 64-byte header
//	addr := a.Alloc(1024)
//	a.Free(addr, 1024)     // reaches EOF, so the file shrinks back to 64
package alloc
