// Package alloc provides extent allocation for the container and record
// store files.
package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocator hands out extents of a file address space. Freed extents are
// kept in an address-ordered free list, merged with their neighbours, and
// reused first fit before the end of file is advanced.
type Allocator struct {
	mu sync.Mutex

	// eofAddr is the current end-of-file address (next append point)
	eofAddr uint64

	// baseAddr is the minimum address that can be allocated
	// (typically after the file header)
	baseAddr uint64

	// live tracks extents handed out and not yet freed, by address
	live map[uint64]uint64

	// freeBlocks is sorted by address and never holds two adjacent blocks
	freeBlocks []FreeBlock

	stats Stats
}

// FreeBlock represents a freed extent available for reuse.
type FreeBlock struct {
	Addr uint64 `cbor:"1,keyasint"`
	Size uint64 `cbor:"2,keyasint"`
}

// End returns the first address past the block.
func (b FreeBlock) End() uint64 {
	return b.Addr + b.Size
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64 // Number of allocations made
	TotalBytesAlloc  uint64 // Total units allocated
	TotalBytesFree   uint64 // Total units freed
	ReusedAllocs     uint64 // Allocations served from the free list
	LargestAlloc     uint64 // Largest single allocation
}

// New creates a new Allocator starting at the given base address.
func New(baseAddr uint64) *Allocator {
	return &Allocator{
		eofAddr:  baseAddr,
		baseAddr: baseAddr,
		live:     make(map[uint64]uint64),
	}
}

// Restore creates an allocator for an existing file whose logical end is
// eof and whose previously freed extents are free.
func Restore(baseAddr, eof uint64, free []FreeBlock) (*Allocator, error) {
	a := New(baseAddr)
	if eof < baseAddr {
		return nil, fmt.Errorf("end of file 0x%x is before base address 0x%x", eof, baseAddr)
	}
	a.eofAddr = eof
	for _, b := range free {
		if b.Size == 0 {
			continue
		}
		if b.Addr < baseAddr || b.End() > eof {
			return nil, fmt.Errorf("free block [0x%x, size %d] outside [0x%x, 0x%x)", b.Addr, b.Size, baseAddr, eof)
		}
		a.freeLocked(b.Addr, b.Size)
	}
	a.stats = Stats{}
	return a, nil
}

// Alloc allocates an extent of the given size and returns its address.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(size)
}

// allocLocked performs allocation while holding the lock.
func (a *Allocator) allocLocked(size uint64) uint64 {
	if size == 0 {
		return a.eofAddr
	}

	addr, reused := a.takeFreeLocked(size)
	if !reused {
		addr = a.eofAddr
		a.eofAddr += size
	}

	a.live[addr] = size

	a.stats.TotalAllocations++
	a.stats.TotalBytesAlloc += size
	if reused {
		a.stats.ReusedAllocs++
	}
	if size > a.stats.LargestAlloc {
		a.stats.LargestAlloc = size
	}

	return addr
}

// takeFreeLocked carves size units from the first free block large enough.
func (a *Allocator) takeFreeLocked(size uint64) (uint64, bool) {
	for i, b := range a.freeBlocks {
		if b.Size < size {
			continue
		}
		if b.Size == size {
			a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
		} else {
			a.freeBlocks[i] = FreeBlock{Addr: b.Addr + size, Size: b.Size - size}
		}
		return b.Addr, true
	}
	return 0, false
}

// Free returns an extent to the free list. A block that ends at the end of
// file shrinks the file instead.
func (a *Allocator) Free(addr, size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size == 0 {
		return
	}
	delete(a.live, addr)
	a.stats.TotalBytesFree += size
	a.freeLocked(addr, size)
}

func (a *Allocator) freeLocked(addr, size uint64) {
	i := sort.Search(len(a.freeBlocks), func(i int) bool {
		return a.freeBlocks[i].Addr >= addr
	})
	blk := FreeBlock{Addr: addr, Size: size}

	// Merge with the following block.
	if i < len(a.freeBlocks) && blk.End() == a.freeBlocks[i].Addr {
		blk.Size += a.freeBlocks[i].Size
		a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
	}
	// Merge with the preceding block.
	if i > 0 && a.freeBlocks[i-1].End() == blk.Addr {
		i--
		blk.Addr = a.freeBlocks[i].Addr
		blk.Size += a.freeBlocks[i].Size
		a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
	}

	if blk.End() == a.eofAddr {
		a.eofAddr = blk.Addr
		return
	}

	a.freeBlocks = append(a.freeBlocks, FreeBlock{})
	copy(a.freeBlocks[i+1:], a.freeBlocks[i:])
	a.freeBlocks[i] = blk
}

// EOFAddr returns the current end-of-file address.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eofAddr
}

// BaseAddr returns the base address (start of allocatable space).
func (a *Allocator) BaseAddr() uint64 {
	return a.baseAddr
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// FreeBlocks returns a copy of the free list in address order.
func (a *Allocator) FreeBlocks() []FreeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]FreeBlock, len(a.freeBlocks))
	copy(result, a.freeBlocks)
	return result
}

// FreeBytes returns the total size of the free list.
func (a *Allocator) FreeBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint64
	for _, b := range a.freeBlocks {
		n += b.Size
	}
	return n
}

// Validate checks that live extents and free blocks are within bounds and
// never overlap one another.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	extents := make([]FreeBlock, 0, len(a.live)+len(a.freeBlocks))
	for addr, size := range a.live {
		extents = append(extents, FreeBlock{Addr: addr, Size: size})
	}
	extents = append(extents, a.freeBlocks...)
	sort.Slice(extents, func(i, j int) bool { return extents[i].Addr < extents[j].Addr })

	for i, e := range extents {
		if e.Addr < a.baseAddr {
			return fmt.Errorf("extent at 0x%x is before base address 0x%x", e.Addr, a.baseAddr)
		}
		if e.End() > a.eofAddr {
			return fmt.Errorf("extent at 0x%x size %d extends past EOF 0x%x", e.Addr, e.Size, a.eofAddr)
		}
		if i > 0 && extents[i-1].End() > e.Addr {
			p := extents[i-1]
			return fmt.Errorf("overlapping extents: [0x%x, size %d] and [0x%x, size %d]",
				p.Addr, p.Size, e.Addr, e.Size)
		}
	}
	return nil
}

// SnapshotAfterFree returns the free list and end of file as they would be
// once the given extents are freed, without modifying the allocator.
func (a *Allocator) SnapshotAfterFree(extents ...FreeBlock) ([]FreeBlock, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tmp := &Allocator{
		eofAddr:    a.eofAddr,
		baseAddr:   a.baseAddr,
		freeBlocks: append([]FreeBlock(nil), a.freeBlocks...),
	}
	for _, e := range extents {
		if e.Size > 0 {
			tmp.freeLocked(e.Addr, e.Size)
		}
	}
	return tmp.freeBlocks, tmp.eofAddr
}

// ExtendTo moves the end of file to end if it is further. Space written
// outside the allocator is accounted as used this way.
func (a *Allocator) ExtendTo(end uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if end > a.eofAddr {
		a.eofAddr = end
	}
}
