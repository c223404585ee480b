package flattree

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/memfs"

	"github.com/robert-malhotra/go-boxtree/boxfile"
	"github.com/robert-malhotra/go-boxtree/diskstore"
	"github.com/robert-malhotra/go-boxtree/mdbox"
	"github.com/robert-malhotra/go-boxtree/mderrors"
)

const containerName = "tree.bxf"

func createContainer(t *testing.T) (billy.Filesystem, *boxfile.File) {
	t.Helper()
	fs := memfs.New()
	f, err := OpenContainer(containerName, false, boxfile.WithFilesystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return fs, f
}

func reopen(t *testing.T, fs billy.Filesystem, f *boxfile.File, readOnly bool) *boxfile.File {
	t.Helper()
	require.NoError(t, f.Close())
	g, err := OpenContainer(containerName, readOnly, boxfile.WithFilesystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func structurePath(name string) string {
	return WorkspaceGroup + "/" + DefaultGroupName + "/" + name
}

func TestPersistAndRestore(t *testing.T) {
	codec := New(nil)
	fs, f := createContainer(t)

	nodes := buildTree(t)
	ft, err := codec.Encode(nodes, testDims, "<controller max_depth=\"4\"/>")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(ft, f))

	ro := reopen(t, fs, f, true)
	ws, err := ro.Root().OpenGroup(WorkspaceGroup)
	require.NoError(t, err)
	eventType, err := ws.AttrString(AttrEventType)
	require.NoError(t, err)
	assert.Equal(t, diskstore.LeanEventType, eventType)

	g, err := ws.OpenGroup(DefaultGroupName)
	require.NoError(t, err)
	version, err := g.AttrString(AttrVersion)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, version)
	assert.Equal(t, []string{ColBoxChildren, ColBoxEventIndex, ColSignalErrorSq, ColBoxType,
		ColDepth, ColExtents, ColInverseVolume}, g.Columns())

	extents, err := ro.OpenColumn(structurePath(ColExtents))
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 4}, extents.Shape())

	restored, err := codec.Restore(ro, testDims, diskstore.LeanEventType, false)
	require.NoError(t, err)
	if diff := cmp.Diff(ft, restored); diff != "" {
		t.Errorf("restored flat tree differs (-want +got):\n%s", diff)
	}

	got, total, err := codec.Decode(restored, DecodeOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 22, total)
	if diff := cmp.Diff(summarize(nodes), summarize(got)); diff != "" {
		t.Errorf("decoded boxes differ (-want +got):\n%s", diff)
	}
}

func TestPersistSingleLeaf(t *testing.T) {
	codec := New(nil)
	_, f := createContainer(t)

	nodes, err := mdbox.Flatten(newLeaf(t, 0, 3, -1, 1))
	require.NoError(t, err)
	ft, err := codec.Encode(nodes, testDims, "")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(ft, f))

	restored, err := codec.Restore(f, testDims, diskstore.LeanEventType, false)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.NumBoxes())

	got, _, err := codec.Decode(restored, DecodeOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Depth())
	assert.Equal(t, mdbox.KindLeaf, got[0].Kind())
	assert.Equal(t, square(-1, 1), got[0].Extents())
}

func TestPersistIsIdempotent(t *testing.T) {
	codec := New(nil, WithColumnOptions(boxfile.WithShuffle(), boxfile.WithCompression(3)))
	fs, f := createContainer(t)

	ft, err := codec.Encode(buildTree(t), testDims, "desc")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(ft, f))

	readAll := func(f *boxfile.File) map[string][]byte {
		out := map[string][]byte{}
		for _, def := range ft.columns() {
			col, err := f.OpenColumn(structurePath(def.name))
			require.NoError(t, err)
			raw, err := col.ReadRaw()
			require.NoError(t, err)
			out[def.name] = raw
		}
		return out
	}
	first := readAll(f)
	capacity := map[string]uint64{}
	for _, def := range ft.columns() {
		col, err := f.OpenColumn(structurePath(def.name))
		require.NoError(t, err)
		capacity[def.name] = col.Capacity()
	}

	require.NoError(t, codec.Persist(ft, f))
	ro := reopen(t, fs, f, true)
	assert.Equal(t, first, readAll(ro))
	for _, def := range ft.columns() {
		col, err := ro.OpenColumn(structurePath(def.name))
		require.NoError(t, err)
		assert.Equal(t, capacity[def.name], col.Capacity(), def.name)
	}

	restored, err := codec.Restore(ro, testDims, diskstore.LeanEventType, false)
	require.NoError(t, err)
	assert.Equal(t, ft, restored)
}

func TestPersistUpdatesGrowingTree(t *testing.T) {
	codec := New(nil)
	_, f := createContainer(t)

	small, err := codec.Encode(scenarioTree(t), testDims, "v1")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(small, f))

	large, err := codec.Encode(buildTree(t), testDims, "v2")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(large, f))

	restored, err := codec.Restore(f, testDims, diskstore.LeanEventType, false)
	require.NoError(t, err)
	assert.Equal(t, "v2", restored.ControllerDescriptor)
	assert.Equal(t, 11, restored.NumBoxes())
	assert.Equal(t, large.EventIndex, restored.EventIndex)
}

func TestPersistErrors(t *testing.T) {
	codec := New(nil)
	fs, f := createContainer(t)
	ft, err := codec.Encode(buildTree(t), testDims, "")
	require.NoError(t, err)

	indexOnly := *ft
	indexOnly.IndexOnly = true
	assert.ErrorIs(t, codec.Persist(&indexOnly, f), mderrors.ErrFormat)

	other := New(nil, WithEventType(diskstore.FullEventType))
	assert.ErrorIs(t, other.Persist(ft, f), mderrors.ErrFormat)

	require.NoError(t, codec.Persist(ft, f))

	threeD := *ft
	threeD.Dims = 3
	threeD.Extents = make([]float64, ft.NumBoxes()*6)
	assert.ErrorIs(t, codec.Persist(&threeD, f), mderrors.ErrFormat)

	ro := reopen(t, fs, f, true)
	assert.ErrorIs(t, codec.Persist(ft, ro), mderrors.ErrFileAccess)
}

func TestRestoreIndexOnly(t *testing.T) {
	codec := New(nil)
	_, f := createContainer(t)
	ft, err := codec.Encode(buildTree(t), testDims, "desc")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(ft, f))

	idx, err := codec.Restore(f, testDims, diskstore.LeanEventType, true)
	require.NoError(t, err)
	assert.True(t, idx.IndexOnly)
	assert.Equal(t, ft.BoxType, idx.BoxType)
	assert.Equal(t, ft.EventIndex, idx.EventIndex)
	assert.Nil(t, idx.Extents)
	assert.Nil(t, idx.Depth)
	assert.Nil(t, idx.SignalErrorSq)
	assert.Nil(t, idx.InverseVolume)
	assert.Nil(t, idx.BoxChildren)
	assert.Equal(t, "desc", idx.ControllerDescriptor)

	assert.Equal(t, ft.LeafRanges(), idx.LeafRanges())
	assert.EqualValues(t, 22, idx.TotalEvents())
}

func TestRestoreErrors(t *testing.T) {
	codec := New(nil)
	_, f := createContainer(t)

	_, err := codec.Restore(f, testDims, diskstore.LeanEventType, false)
	assert.ErrorIs(t, err, mderrors.ErrFormat, "no workspace")

	_, err = codec.EnsureWorkspace(f, testDims)
	require.NoError(t, err)
	_, err = codec.Restore(f, testDims, diskstore.LeanEventType, false)
	assert.ErrorIs(t, err, mderrors.ErrFormat, "no box structure")

	ft, err := codec.Encode(buildTree(t), testDims, "")
	require.NoError(t, err)
	require.NoError(t, codec.Persist(ft, f))

	_, err = codec.Restore(f, testDims, diskstore.FullEventType, false)
	assert.ErrorIs(t, err, mderrors.ErrFormat, "event type")
	_, err = codec.Restore(f, 3, diskstore.LeanEventType, false)
	assert.ErrorIs(t, err, mderrors.ErrFormat, "dimensions")

	depth, err := f.OpenColumn(structurePath(ColDepth))
	require.NoError(t, err)
	require.NoError(t, depth.Write([]int32{0, 1}))
	_, err = codec.Restore(f, testDims, diskstore.LeanEventType, false)
	assert.ErrorIs(t, err, mderrors.ErrDataIntegrity, "short column")
	_, err = codec.Restore(f, testDims, diskstore.LeanEventType, true)
	assert.NoError(t, err, "index-only restore ignores depth")

	boxType, err := f.OpenColumn(structurePath(ColBoxType))
	require.NoError(t, err)
	require.NoError(t, boxType.Write([]int32{}))
	_, err = codec.Restore(f, testDims, diskstore.LeanEventType, true)
	assert.ErrorIs(t, err, mderrors.ErrDataIntegrity, "zero boxes")
}

func TestOpenContainer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.bxf")
	codec := New(nil)

	_, err := OpenContainer(path, true)
	assert.ErrorIs(t, err, mderrors.ErrFileAccess)
	_, err = codec.OpenWorkspace(path, testDims, true)
	assert.ErrorIs(t, err, mderrors.ErrFileAccess)

	f, err := OpenContainer(path, false)
	require.NoError(t, err)
	assert.True(t, f.IsWritable())
	require.NoError(t, f.Close())

	_, err = codec.OpenWorkspace(path, testDims, true)
	assert.ErrorIs(t, err, mderrors.ErrFormat, "read-only file without a workspace")

	f, err = codec.OpenWorkspace(path, testDims, false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = codec.OpenWorkspace(path, testDims, true)
	require.NoError(t, err)
	assert.False(t, f.IsWritable())
	require.NoError(t, f.Close())

	_, err = codec.OpenWorkspace(path, 3, true)
	assert.ErrorIs(t, err, mderrors.ErrFormat)
	_, err = New(nil, WithEventType(diskstore.FullEventType)).OpenWorkspace(path, testDims, false)
	assert.ErrorIs(t, err, mderrors.ErrFormat)
}

func TestMetadataBlocks(t *testing.T) {
	codec := New(nil)
	_, f := createContainer(t)

	_, err := SaveBlocks(f, 1, nil)
	assert.ErrorIs(t, err, mderrors.ErrFormat)

	ws, err := codec.EnsureWorkspace(f, testDims)
	require.NoError(t, err)

	var written []int
	write := func(g *boxfile.Group, i int) error {
		written = append(written, i)
		return g.SetAttr("label", fmt.Sprintf("run %d", i))
	}
	n, err := SaveBlocks(f, 3, write)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, name := range []string{"block10", "block01", "blocks", "other"} {
		_, err := ws.CreateGroup(name)
		require.NoError(t, err)
	}

	n, err = SaveBlocks(f, 5, write)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, written)

	indices, err := BlockIndices(f)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 10}, indices)

	var labels []string
	require.NoError(t, LoadBlocks(f, func(g *boxfile.Group, i int) error {
		if !g.HasAttr("label") {
			labels = append(labels, "")
			return nil
		}
		s, err := g.AttrString("label")
		labels = append(labels, s)
		return err
	}))
	assert.Equal(t, []string{"run 0", "run 1", "run 2", "run 3", "run 4", ""}, labels)

	boom := errors.New("boom")
	err = LoadBlocks(f, func(g *boxfile.Group, i int) error {
		if i == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, mderrors.ErrFormat)
}
