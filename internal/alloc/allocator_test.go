package alloc

import (
	"sync"
	"testing"
)

func TestAllocatorBasic(t *testing.T) {
	a := New(1024)

	addr1 := a.Alloc(100)
	if addr1 != 1024 {
		t.Errorf("first allocation: got 0x%x, want 0x%x", addr1, 1024)
	}

	addr2 := a.Alloc(200)
	if addr2 != 1124 {
		t.Errorf("second allocation: got 0x%x, want 0x%x", addr2, 1124)
	}

	if a.EOFAddr() != 1324 {
		t.Errorf("EOF: got 0x%x, want 0x%x", a.EOFAddr(), 1324)
	}
}

func TestAllocatorZeroSize(t *testing.T) {
	a := New(100)

	if addr := a.Alloc(0); addr != 100 {
		t.Errorf("zero allocation: got 0x%x, want 0x%x", addr, 100)
	}
	if a.EOFAddr() != 100 {
		t.Errorf("EOF after zero alloc: got 0x%x, want 0x%x", a.EOFAddr(), 100)
	}
}

func TestAllocatorReuse(t *testing.T) {
	a := New(0)
	x := a.Alloc(100) // [0,100)
	y := a.Alloc(50)  // [100,150)
	_ = a.Alloc(10)   // [150,160)

	a.Free(x, 100)
	if got := a.Alloc(40); got != x {
		t.Errorf("reused allocation at 0x%x, want 0x%x", got, x)
	}
	if got := a.Alloc(60); got != 40 {
		t.Errorf("split remainder at 0x%x, want 0x28", got)
	}
	if a.EOFAddr() != 160 {
		t.Errorf("EOF grew to %d", a.EOFAddr())
	}
	if s := a.Stats(); s.ReusedAllocs != 2 {
		t.Errorf("ReusedAllocs = %d, want 2", s.ReusedAllocs)
	}

	// Too big for any hole: appended.
	a.Free(y, 50)
	if got := a.Alloc(80); got != 160 {
		t.Errorf("large allocation at 0x%x, want 0xa0", got)
	}
}

func TestAllocatorCoalesce(t *testing.T) {
	a := New(0)
	b1 := a.Alloc(10)
	b2 := a.Alloc(10)
	b3 := a.Alloc(10)
	_ = a.Alloc(10)

	a.Free(b1, 10)
	a.Free(b3, 10)
	if n := len(a.FreeBlocks()); n != 2 {
		t.Fatalf("free blocks = %d, want 2", n)
	}
	a.Free(b2, 10)
	fb := a.FreeBlocks()
	if len(fb) != 1 || fb[0].Addr != 0 || fb[0].Size != 30 {
		t.Errorf("free list after coalesce = %+v", fb)
	}
}

func TestAllocatorFreeAtEOFShrinks(t *testing.T) {
	a := New(64)
	x := a.Alloc(100)
	y := a.Alloc(100)
	a.Free(x, 100)
	a.Free(y, 100)
	if a.EOFAddr() != 64 {
		t.Errorf("EOF = %d, want 64", a.EOFAddr())
	}
	if len(a.FreeBlocks()) != 0 {
		t.Errorf("free list = %+v, want empty", a.FreeBlocks())
	}
}

func TestRestore(t *testing.T) {
	a, err := Restore(64, 1000, []FreeBlock{{Addr: 200, Size: 50}, {Addr: 100, Size: 20}})
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Alloc(20); got != 100 {
		t.Errorf("restored free list not reused: 0x%x", got)
	}
	if got := a.Alloc(30); got != 200 {
		t.Errorf("second reuse at 0x%x, want 0xc8", got)
	}

	if _, err := Restore(64, 100, []FreeBlock{{Addr: 90, Size: 20}}); err == nil {
		t.Error("expected error for free block past EOF")
	}
	if _, err := Restore(64, 32, nil); err == nil {
		t.Error("expected error for EOF before base")
	}
}

func TestAllocatorValidate(t *testing.T) {
	a := New(100)
	a.Alloc(50)
	a.Alloc(30)
	x := a.Alloc(20)
	a.Alloc(5)
	a.Free(x, 20)
	if err := a.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				addr := a.Alloc(16)
				if i%2 == 0 {
					a.Free(addr, 16)
				}
			}
		}()
	}
	wg.Wait()
	if err := a.Validate(); err != nil {
		t.Errorf("Validate after concurrent use: %v", err)
	}
}

func TestSnapshotAfterFree(t *testing.T) {
	a := New(0)
	x := a.Alloc(10) // [0,10)
	_ = a.Alloc(10)  // [10,20)
	z := a.Alloc(10) // [20,30)

	free, eof := a.SnapshotAfterFree(FreeBlock{Addr: x, Size: 10}, FreeBlock{Addr: z, Size: 10})
	if len(free) != 1 || free[0] != (FreeBlock{Addr: 0, Size: 10}) {
		t.Errorf("snapshot free list = %v", free)
	}
	if eof != 20 {
		t.Errorf("snapshot EOF = %d, want 20", eof)
	}

	// The allocator itself is untouched.
	if a.EOFAddr() != 30 || len(a.FreeBlocks()) != 0 {
		t.Errorf("allocator modified: eof %d, free %v", a.EOFAddr(), a.FreeBlocks())
	}
}

func TestExtendTo(t *testing.T) {
	a := New(0)
	a.ExtendTo(100)
	if got := a.Alloc(10); got != 100 {
		t.Errorf("allocation after ExtendTo at %d, want 100", got)
	}
	a.ExtendTo(50)
	if a.EOFAddr() != 110 {
		t.Errorf("ExtendTo must never shrink: EOF %d", a.EOFAddr())
	}
}
