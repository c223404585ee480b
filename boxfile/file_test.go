package boxfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/src-d/go-billy.v4/memfs"

	"github.com/robert-malhotra/go-boxtree/internal/dtype"
	"github.com/robert-malhotra/go-boxtree/internal/superblock"
)

func TestCreateAndReopen(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tree.bxf")

	f, err := Create(testFile)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !f.IsWritable() {
		t.Error("File should be writable")
	}
	id := f.ID()

	ws, err := f.Root().CreateGroup("event_workspace")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := ws.SetAttr("event_type", "MDLeanEvent"); err != nil {
		t.Fatalf("SetAttr failed: %v", err)
	}
	col, err := ws.CreateColumn("dimensions", dtype.Int32, 1)
	if err != nil {
		t.Fatalf("CreateColumn failed: %v", err)
	}
	if err := col.Write([]int32{3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	f2, err := Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f2.Close()

	if f2.IsWritable() {
		t.Error("Open should be read-only")
	}
	if f2.ID() != id {
		t.Errorf("file ID changed: %v != %v", f2.ID(), id)
	}
	if f2.Info().OpenForWrite {
		t.Error("clean close should clear the open-for-write flag")
	}

	v, err := f2.ReadAttr("/event_workspace@event_type")
	if err != nil {
		t.Fatalf("ReadAttr failed: %v", err)
	}
	if v != "MDLeanEvent" {
		t.Errorf("event_type = %v", v)
	}

	dims, err := f2.OpenColumn("/event_workspace/dimensions")
	if err != nil {
		t.Fatalf("OpenColumn failed: %v", err)
	}
	got, err := dims.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32 failed: %v", err)
	}
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("dimensions = %v, want [3]", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.bxf"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestOpenNotContainer(t *testing.T) {
	fs := memfs.New()
	junk, _ := fs.Create("junk.bin")
	junk.Write([]byte("definitely not a container file, just some bytes here"))
	junk.Close()

	_, err := Open("junk.bin", WithFilesystem(fs))
	if !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got %v", err)
	}
}

func TestReadOnlyAndClosed(t *testing.T) {
	fs := memfs.New()
	f, err := Create("ro.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	g, _ := f.Root().CreateGroup("g")
	c, _ := g.CreateColumn("c", dtype.Float64, 2)
	if err := c.Write([]float64{1, 2, 3}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("odd element count: expected ErrInvalidShape, got %v", err)
	}
	if _, err := g.CreateGroup("c"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate name: expected ErrExists, got %v", err)
	}
	if _, err := g.CreateGroup("a/b"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("bad name: expected ErrInvalidPath, got %v", err)
	}
	f.Close()

	r, err := Open("ro.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := r.Root().CreateGroup("x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateGroup on read-only: got %v", err)
	}
	col, err := r.OpenColumn("/g/c")
	if err != nil {
		t.Fatalf("OpenColumn failed: %v", err)
	}
	if err := col.Write([]float64{1, 2}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write on read-only: got %v", err)
	}
	if err := r.Root().SetAttr("a", "b"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetAttr on read-only: got %v", err)
	}
	if _, err := r.OpenGroup("/g/c"); !errors.Is(err, ErrNotGroup) {
		t.Errorf("OpenGroup on a column: got %v", err)
	}
	if _, err := r.OpenColumn("/g"); !errors.Is(err, ErrNotColumn) {
		t.Errorf("OpenColumn on a group: got %v", err)
	}
	if _, err := r.OpenGroup("/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("OpenGroup missing: got %v", err)
	}

	r.Close()
	if _, err := r.OpenGroup("/g"); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenGroup after close: got %v", err)
	}
	if err := r.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after close: got %v", err)
	}
}

func TestUncleanCloseLeavesFlag(t *testing.T) {
	fs := memfs.New()
	f, err := Create("crash.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	// Simulate a crash: drop the handle without Close.

	r, err := Open("crash.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	if !r.Info().OpenForWrite {
		t.Error("expected open-for-write flag after unclean shutdown")
	}
}

func TestCatalogCopyOnWriteBounded(t *testing.T) {
	fs := memfs.New()
	f, err := Create("cow.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	var maxCatalog uint64
	prev := f.Info().CatalogAddress
	for i := 0; i < 20; i++ {
		if err := f.Root().SetAttr("counter", i); err != nil {
			t.Fatalf("SetAttr failed: %v", err)
		}
		if err := f.Flush(); err != nil {
			t.Fatalf("Flush %d failed: %v", i, err)
		}
		info := f.Info()
		if info.CatalogAddress == prev {
			t.Fatalf("flush %d rewrote the live catalog in place", i)
		}
		prev = info.CatalogAddress
		if info.CatalogSize > maxCatalog {
			maxCatalog = info.CatalogSize
		}
		if err := f.allocator.Validate(); err != nil {
			t.Fatalf("allocator invalid after flush %d: %v", i, err)
		}
	}
	if eof := f.Info().EOF; eof > superblock.Size+4*maxCatalog {
		t.Errorf("EOF 0x%x grew past 0x%x: freed catalogs not reused", eof, superblock.Size+4*maxCatalog)
	}
}

func TestReopenReusesFreedSpace(t *testing.T) {
	fs := memfs.New()
	f, err := Create("reuse.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	root := f.Root()
	a, _ := root.CreateColumn("a", dtype.Float64, 1, WithChunkRows(8))
	b, _ := root.CreateColumn("b", dtype.Float64, 1, WithChunkRows(8))
	if err := a.Write(seq(8)); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(seq(8)); err != nil {
		t.Fatal(err)
	}
	oldAddr, bAddr := a.desc.Addr, b.desc.Addr
	// Grow a past its capacity so it moves after b.
	if err := a.Write(seq(20)); err != nil {
		t.Fatal(err)
	}
	if a.desc.Addr == oldAddr {
		t.Fatal("column should have moved")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	rw, err := OpenReadWrite("reuse.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	if err := rw.allocator.Validate(); err != nil {
		t.Fatalf("restored allocator invalid: %v", err)
	}
	c, _ := rw.Root().CreateColumn("c", dtype.Float64, 1, WithChunkRows(8))
	if err := c.Write(seq(8)); err != nil {
		t.Fatal(err)
	}
	if c.desc.Addr+64 > bAddr {
		t.Errorf("new column at 0x%x, expected reuse of space freed before 0x%x", c.desc.Addr, bAddr)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := Open("reuse.bxf", WithFilesystem(fs))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	for name, want := range map[string]int{"a": 20, "b": 8, "c": 8} {
		col, err := r.OpenColumn(name)
		if err != nil {
			t.Fatalf("OpenColumn %s: %v", name, err)
		}
		got, err := col.ReadFloat64()
		if err != nil {
			t.Fatalf("ReadFloat64 %s: %v", name, err)
		}
		if len(got) != want || got[want-1] != float64(want-1) {
			t.Errorf("%s = %v", name, got)
		}
	}
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
