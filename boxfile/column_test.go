package boxfile

import (
	"errors"
	"reflect"
	"testing"

	"gopkg.in/src-d/go-billy.v4/memfs"

	"github.com/robert-malhotra/go-boxtree/internal/dtype"
	"github.com/robert-malhotra/go-boxtree/internal/filter"
)

func newMemFile(t *testing.T) *File {
	t.Helper()
	f, err := Create("test.bxf", WithFilesystem(memfs.New()))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestColumnInPlaceAndGrow(t *testing.T) {
	f := newMemFile(t)
	col, err := f.Root().CreateColumn("extents", dtype.Float64, 2, WithChunkRows(4))
	if err != nil {
		t.Fatalf("CreateColumn failed: %v", err)
	}
	if col.Rows() != 0 || col.Capacity() != 0 {
		t.Fatalf("new column should be empty: rows %d capacity %d", col.Rows(), col.Capacity())
	}

	// 4 rows x 2 x 8 bytes fills one chunk.
	if err := col.Write(seq(6)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	addr := col.desc.Addr
	if col.Capacity() != 64 {
		t.Errorf("capacity = %d, want 64", col.Capacity())
	}
	if err := col.Write(seq(8)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if col.desc.Addr != addr {
		t.Errorf("write that fits should stay in place")
	}
	if err := col.Write(seq(10)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if col.desc.Addr == addr || col.Capacity() != 128 {
		t.Errorf("grown column: addr 0x%x (was 0x%x), capacity %d", col.desc.Addr, addr, col.Capacity())
	}
	if !reflect.DeepEqual(col.Shape(), []uint64{5, 2}) {
		t.Errorf("Shape = %v", col.Shape())
	}

	got, err := col.ReadFloat64()
	if err != nil {
		t.Fatalf("ReadFloat64 failed: %v", err)
	}
	if !reflect.DeepEqual(got, seq(10)) {
		t.Errorf("read %v", got)
	}

	// Shrinking keeps the extent.
	if err := col.Write([]float64{}); err != nil {
		t.Fatalf("Write empty failed: %v", err)
	}
	if col.Rows() != 0 || col.Capacity() != 128 {
		t.Errorf("after empty write: rows %d capacity %d", col.Rows(), col.Capacity())
	}
	empty, err := col.ReadFloat64()
	if err != nil || len(empty) != 0 {
		t.Errorf("empty read: %v %v", empty, err)
	}
}

func TestColumnFilters(t *testing.T) {
	f := newMemFile(t)
	col, err := f.Root().CreateColumn("box_event_index", dtype.Uint64, 2,
		WithShuffle(), WithCompression(3), WithFletcher32())
	if err != nil {
		t.Fatalf("CreateColumn failed: %v", err)
	}
	want := make([]uint64, 2000)
	for i := range want {
		want[i] = uint64(i / 2)
	}
	if err := col.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if col.desc.Stored >= col.desc.RawSize() {
		t.Errorf("stored %d bytes for %d raw, expected compression", col.desc.Stored, col.desc.RawSize())
	}
	wantIDs := []uint16{filter.IDShuffle, filter.IDZstd, filter.IDFletcher32}
	if !reflect.DeepEqual(col.Filters(), wantIDs) {
		t.Errorf("Filters = %v, want %v", col.Filters(), wantIDs)
	}

	got, err := col.ReadUint64()
	if err != nil {
		t.Fatalf("ReadUint64 failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("filtered roundtrip mismatch")
	}

	// Cross-type read.
	asInt64, err := col.ReadInt64()
	if err != nil {
		t.Fatalf("ReadInt64 failed: %v", err)
	}
	if asInt64[1999] != 999 {
		t.Errorf("ReadInt64 last = %d, want 999", asInt64[1999])
	}
}

func TestColumnChecksumMismatch(t *testing.T) {
	f := newMemFile(t)
	col, _ := f.Root().CreateColumn("depth", dtype.Int32, 1)
	if err := col.Write([]int32{0, 1, 1, 2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.writer.At(int64(col.desc.Addr) + 4).WriteBytes([]byte{0xFF}); err != nil {
		t.Fatalf("corrupting failed: %v", err)
	}
	if _, err := col.ReadInt32(); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestColumnIntConversion(t *testing.T) {
	f := newMemFile(t)
	col, _ := f.Root().CreateColumn("box_type", dtype.Int32, 1)
	if err := col.Write([]int{1, 2, -1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var got []int64
	if err := col.Read(&got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{1, 2, -1}) {
		t.Errorf("Read = %v", got)
	}
	if col.Len() != 3 || col.Name() != "box_type" || col.Path() != "/box_type" {
		t.Errorf("Len %d Name %q Path %q", col.Len(), col.Name(), col.Path())
	}
}
