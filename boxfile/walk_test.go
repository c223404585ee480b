package boxfile

import (
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-boxtree/internal/dtype"
)

func TestWalk(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	ws, _ := root.CreateGroup("ws")
	bs, _ := ws.CreateGroup("box_structure")
	bs.CreateColumn("depth", dtype.Int32, 1)
	bs.CreateColumn("box_type", dtype.Int32, 1)
	ws.CreateColumn("dimensions", dtype.Int32, 1)
	root.CreateGroup("block0")

	var visited []string
	err := f.Walk(func(path string, obj interface{}) error {
		switch obj.(type) {
		case *Group:
			visited = append(visited, "g:"+path)
		case *Column:
			visited = append(visited, "c:"+path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	want := []string{
		"g:/",
		"g:/block0",
		"g:/ws",
		"g:/ws/box_structure",
		"c:/ws/box_structure/box_type",
		"c:/ws/box_structure/depth",
		"c:/ws/dimensions",
	}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited %v\nwant %v", visited, want)
	}

	visited = nil
	Walk(ws, func(path string, obj interface{}) error {
		visited = append(visited, path)
		if path == "/ws/box_structure" {
			return SkipGroup
		}
		return nil
	})
	if !reflect.DeepEqual(visited, []string{"/ws", "/ws/box_structure", "/ws/dimensions"}) {
		t.Errorf("SkipGroup walk visited %v", visited)
	}
}

func TestGroupListing(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	root.CreateGroup("b")
	root.CreateGroup("a")
	root.CreateColumn("z", dtype.Float64, 1)
	root.SetAttr("version", "1.0")

	if got := root.Groups(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Groups = %v", got)
	}
	if got := root.Columns(); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("Columns = %v", got)
	}
	if got := root.Members(); !reflect.DeepEqual(got, []string{"a", "b", "z"}) {
		t.Errorf("Members = %v", got)
	}
	if !root.HasGroup("a") || root.HasGroup("z") || !root.HasColumn("z") {
		t.Error("HasGroup/HasColumn mismatch")
	}
	if s, err := root.AttrString("version"); err != nil || s != "1.0" {
		t.Errorf("AttrString = %q, %v", s, err)
	}
	root.SetAttr("n", 4)
	if _, err := root.AttrString("n"); err == nil {
		t.Error("AttrString on an int attribute should fail")
	}
	if !root.HasAttr("n") || !reflect.DeepEqual(root.Attrs(), []string{"n", "version"}) {
		t.Errorf("Attrs = %v", root.Attrs())
	}
}
