// SPDX-License-Identifier: GPL-2.0-or-later

package meshcache

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"

	"hlmesh/math/vec"
	"hlmesh/mesh"
)

var testIdent = mesh.Identity{
	Model:   "models/crate.mdl",
	Body:    1,
	Skin:    2,
	Kind:    mesh.KindStudio,
	ModTime: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC),
}

// crate builds a closed box with a few thousand facets on one face.
func crate(t *testing.T, id mesh.Identity, tree bool) *mesh.Mesh {
	t.Helper()
	opts := mesh.DefaultBuildOptions()
	opts.BuildTree = tree
	b := mesh.NewBuilder(id, opts)
	add := func(a, b2, c vec.Vec3, mat int32) {
		v := [3]mesh.Vertex{{Pos: a}, {Pos: b2, U: 1}, {Pos: c, U: 1, V: 1}}
		if _, err := b.AddTriangle(v, mat); err != nil {
			t.Fatal(err)
		}
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			x0, y0 := float32(x*4), float32(y*4)
			add(vec.Vec3{x0, y0, 0}, vec.Vec3{x0 + 4, y0, 0}, vec.Vec3{x0 + 4, y0 + 4, 0}, int32(x%2))
			add(vec.Vec3{x0, y0, 0}, vec.Vec3{x0 + 4, y0 + 4, 0}, vec.Vec3{x0, y0 + 4, 0}, int32(y%2))
		}
	}
	add(vec.Vec3{0, 0, 64}, vec.Vec3{64, 64, 64}, vec.Vec3{64, 0, 64}, 7)
	add(vec.Vec3{0, 0, 0}, vec.Vec3{0, 64, 64}, vec.Vec3{0, 0, 64}, 8)
	m, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func sameGeometry(t *testing.T, got, want *mesh.Mesh) {
	t.Helper()
	if !reflect.DeepEqual(got.Planes, want.Planes) {
		t.Errorf("planes differ")
	}
	if !reflect.DeepEqual(got.Facets, want.Facets) {
		t.Errorf("facets differ")
	}
	if !reflect.DeepEqual(got.PlaneRefs, want.PlaneRefs) {
		t.Errorf("plane refs differ")
	}
	if len(got.Nodes) != len(want.Nodes) || (len(want.Nodes) > 0 && !reflect.DeepEqual(got.Nodes, want.Nodes)) {
		t.Errorf("nodes differ")
	}
	if len(got.FacetRefs) != len(want.FacetRefs) || (len(want.FacetRefs) > 0 && !reflect.DeepEqual(got.FacetRefs, want.FacetRefs)) {
		t.Errorf("facet refs differ")
	}
	if got.Mins != want.Mins || got.Maxs != want.Maxs {
		t.Errorf("bounds %v %v, want %v %v", got.Mins, got.Maxs, want.Mins, want.Maxs)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tree := range []bool{true, false} {
		m := crate(t, testIdent, tree)
		path := Path(t.TempDir(), testIdent)
		if err := Save(m, path); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := Load(path, testIdent)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !got.Ident.Same(testIdent) {
			t.Errorf("Ident = %v", got.Ident)
		}
		sameGeometry(t, got, m)

		// traces agree on the loaded mesh
		var tr mesh.Tracer
		var zero vec.Vec3
		for _, p := range []vec.Vec3{{3, 5, 0}, {33.3, 17.1, 0}, {60, 2, 0}} {
			start := vec.Add(p, vec.Vec3{0, 0, 10})
			end := vec.Add(p, vec.Vec3{0, 0, -10})
			a := tr.Trace(m, start, zero, zero, end, mesh.Orientation{})
			b := tr.Trace(got, start, zero, zero, end, mesh.Orientation{})
			if a != b {
				t.Errorf("trace at %v: %+v, loaded %+v", p, a, b)
			}
		}
	}
}

func TestEmptyMesh(t *testing.T) {
	b := mesh.NewBuilder(testIdent, mesh.DefaultBuildOptions())
	m, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "empty"+Ext)
	if err := Save(m, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, testIdent)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Facets) != 0 || got.Mins != (vec.Vec3{}) || got.Maxs != (vec.Vec3{}) {
		t.Errorf("loaded %+v", got)
	}
}

func TestNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"+Ext), testIdent)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load = %v, want ErrNotFound", err)
	}
}

func TestStale(t *testing.T) {
	m := crate(t, testIdent, true)
	path := Path(t.TempDir(), testIdent)
	if err := Save(m, path); err != nil {
		t.Fatal(err)
	}
	newer := testIdent
	newer.ModTime = newer.ModTime.Add(time.Second)
	otherSkin := testIdent
	otherSkin.Skin = 3
	otherKind := testIdent
	otherKind.Kind = mesh.KindBrush
	for _, id := range []mesh.Identity{newer, otherSkin, otherKind} {
		if _, err := Load(path, id); !errors.Is(err, ErrStale) {
			t.Errorf("Load(%v) = %v, want ErrStale", id, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(data[4:], cacheVersion+1)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testIdent); !errors.Is(err, ErrStale) {
		t.Errorf("Load of other version = %v, want ErrStale", err)
	}
}

func TestCorrupt(t *testing.T) {
	m := crate(t, testIdent, true)
	dir := t.TempDir()
	path := Path(dir, testIdent)
	if err := Save(m, path); err != nil {
		t.Fatal(err)
	}
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	identEnd := 8 + 2 + len(testIdent.Model) + 17

	tests := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"empty", func(b []byte) []byte { return b[:0] }},
		{"short header", func(b []byte) []byte { return b[:6] }},
		{"identity", func(b []byte) []byte { b[12] ^= 0x40; return b }},
		{"identity crc", func(b []byte) []byte { b[identEnd] ^= 1; return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-5] }},
		{"payload bit", func(b []byte) []byte { b[len(b)/2] ^= 0x10; return b }},
		{"trailing", func(b []byte) []byte { return append(b, 0) }},
		{"name length", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[8:], 0xffff); return b }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.mangle(append([]byte(nil), good...))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path, testIdent)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Load = %v, want ErrCorrupt", err)
			}
			if got != nil {
				t.Errorf("partial mesh returned")
			}
		})
	}
}

func TestCorruptIndices(t *testing.T) {
	m := crate(t, testIdent, true)
	path := Path(t.TempDir(), testIdent)

	bad := *m
	bad.PlaneRefs = append([]uint32(nil), m.PlaneRefs...)
	bad.PlaneRefs[0] = uint32(len(m.Planes))
	if err := Save(&bad, path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testIdent); !errors.Is(err, ErrCorrupt) {
		t.Errorf("plane index out of range: %v", err)
	}

	bad = *m
	bad.Nodes = append([]mesh.AreaNode(nil), m.Nodes...)
	bad.Nodes[0].Children[0] = 0
	if err := Save(&bad, path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testIdent); !errors.Is(err, ErrCorrupt) {
		t.Errorf("node loop: %v", err)
	}

	bad = *m
	bad.FacetRefs = append([]int32(nil), m.FacetRefs...)
	bad.FacetRefs[0] = bad.FacetRefs[1]
	if err := Save(&bad, path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testIdent); !errors.Is(err, ErrCorrupt) {
		t.Errorf("unlinked facet: %v", err)
	}
}

func TestPath(t *testing.T) {
	got := Path("/cache", testIdent)
	want := filepath.Join("/cache", "models_crate_mdl_b1_s2_studio"+Ext)
	if got != want {
		t.Errorf("Path = %v, want %v", got, want)
	}
}
