// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"

	"hlmesh/math/vec"
)

func near(a, b, eps float32) bool {
	return math32.Abs(a-b) <= eps
}

func nearVec(a, b vec.Vec3, eps float32) bool {
	return near(a[0], b[0], eps) && near(a[1], b[1], eps) && near(a[2], b[2], eps)
}

func floorTriangle(t *testing.T) *Mesh {
	return buildMesh(t, []Triangle{{Verts: tri(vec.Vec3{0, 0, 0}, vec.Vec3{10, 0, 0}, vec.Vec3{0, 10, 0}), Material: 5}}, DefaultBuildOptions())
}

var zero vec.Vec3

func TestTraceRayPerpendicular(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{2, 2, 5}, zero, zero, vec.Vec3{2, 2, -5}, Orientation{})
	if !near(got.Fraction, 0.5, 1e-5) {
		t.Errorf("Fraction = %v, want 0.5", got.Fraction)
	}
	if !nearVec(got.EndPos, vec.Vec3{2, 2, 0}, 1e-4) {
		t.Errorf("EndPos = %v, want (2 2 0)", got.EndPos)
	}
	if got.Plane.Normal != (vec.Vec3{0, 0, 1}) || got.Plane.Dist != 0 {
		t.Errorf("Plane = %+v, want (0 0 1) 0", got.Plane)
	}
	if got.Material != 5 || got.Facet != 0 || !got.Hit() {
		t.Errorf("trace = %+v", got)
	}
	if got.StartSolid || got.AllSolid {
		t.Errorf("ray reported solid: %+v", got)
	}
}

func TestTraceRayFromBelow(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{2, 2, -5}, zero, zero, vec.Vec3{2, 2, 5}, Orientation{})
	if !near(got.Fraction, 0.5, 1e-5) {
		t.Errorf("Fraction = %v, want 0.5", got.Fraction)
	}
	if got.Plane.Normal != (vec.Vec3{0, 0, -1}) {
		t.Errorf("normal = %v, want it to face the start", got.Plane.Normal)
	}
}

func TestTraceRayMisses(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	tests := []struct {
		name       string
		start, end vec.Vec3
	}{
		{"outside", vec.Vec3{8, 8, 5}, vec.Vec3{8, 8, -5}},
		{"short", vec.Vec3{2, 2, 5}, vec.Vec3{2, 2, 1}},
		{"parallel", vec.Vec3{-5, 2, 0}, vec.Vec3{15, 2, 0}},
		{"away", vec.Vec3{2, 2, 1}, vec.Vec3{2, 2, 9}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tr.Trace(m, tc.start, zero, zero, tc.end, Orientation{})
			if got.Fraction != 1 || got.Hit() {
				t.Errorf("Fraction = %v, want 1", got.Fraction)
			}
			if got.EndPos != tc.end || got.Material != -1 || got.Facet != -1 {
				t.Errorf("trace = %+v", got)
			}
		})
	}
}

func TestTraceBoxMiss(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{20, 20, 5}, vec.Vec3{-0.5, -0.5, -0.5}, vec.Vec3{0.5, 0.5, 0.5}, vec.Vec3{20, 20, -5}, Orientation{})
	if got.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", got.Fraction)
	}
	if got.Plane != (TracePlane{}) {
		t.Errorf("Plane = %+v, want zero", got.Plane)
	}
	if got.EndPos != (vec.Vec3{20, 20, -5}) {
		t.Errorf("EndPos = %v", got.EndPos)
	}
}

func TestTraceBoxHit(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{2, 2, 5}, vec.Vec3{-0.5, -0.5, -0.5}, vec.Vec3{0.5, 0.5, 0.5}, vec.Vec3{2, 2, -5}, Orientation{})
	want := float32((4.5 - clipEpsilon) / 10)
	if !near(got.Fraction, want, 1e-5) {
		t.Errorf("Fraction = %v, want %v", got.Fraction, want)
	}
	if got.Plane.Normal != (vec.Vec3{0, 0, 1}) {
		t.Errorf("normal = %v", got.Plane.Normal)
	}
	if !near(got.EndPos[2], 5-10*want, 1e-4) {
		t.Errorf("EndPos = %v", got.EndPos)
	}
	if got.StartSolid {
		t.Errorf("StartSolid set")
	}
}

func TestTraceBoxOffset(t *testing.T) {
	// mins/maxs not centered on the origin
	m := floorTriangle(t)
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{2, 2, 5}, vec.Vec3{-1, -1, 0}, vec.Vec3{1, 1, 2}, vec.Vec3{2, 2, -5}, Orientation{})
	want := float32((5 - clipEpsilon) / 10)
	if !near(got.Fraction, want, 1e-5) {
		t.Errorf("Fraction = %v, want %v", got.Fraction, want)
	}
	if !near(got.EndPos[2], 5-10*want, 1e-4) {
		t.Errorf("EndPos = %v", got.EndPos)
	}
}

func TestTraceStartSolid(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	mins := vec.Vec3{-0.5, -0.5, -0.5}
	maxs := vec.Vec3{0.5, 0.5, 0.5}

	got := tr.Trace(m, vec.Vec3{2, 2, 0}, mins, maxs, vec.Vec3{2, 2, 5}, Orientation{})
	if !got.StartSolid || got.AllSolid {
		t.Errorf("leaving: StartSolid %v AllSolid %v", got.StartSolid, got.AllSolid)
	}

	got = tr.Trace(m, vec.Vec3{2, 2, 0}, mins, maxs, vec.Vec3{2, 2, 0.2}, Orientation{})
	if !got.StartSolid || !got.AllSolid || got.Fraction != 0 {
		t.Errorf("staying: %+v", got)
	}

	got = tr.TestPosition(m, vec.Vec3{2, 2, 0.25}, mins, maxs, Orientation{})
	if !got.StartSolid || !got.AllSolid {
		t.Errorf("TestPosition inside: %+v", got)
	}
	if got.Material != 5 {
		t.Errorf("Material = %d", got.Material)
	}

	got = tr.TestPosition(m, vec.Vec3{2, 2, 3}, mins, maxs, Orientation{})
	if got.StartSolid || got.AllSolid || got.Hit() {
		t.Errorf("TestPosition outside: %+v", got)
	}
}

func TestTraceRayBoxAgree(t *testing.T) {
	tris := bumpyGrid(12, 16)
	m := buildMesh(t, tris, DefaultBuildOptions())
	var tr Tracer
	small := vec.Vec3{0.001, 0.001, 0.001}
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		x := float32(r.Intn(12))*16 + 4.8
		y := float32(r.Intn(12))*16 + 9.6
		start := vec.Vec3{x, y, 40}
		end := vec.Vec3{x, y, -20}
		ray := tr.Trace(m, start, zero, zero, end, Orientation{})
		box := tr.Trace(m, start, small.Neg(), small, end, Orientation{})
		if ray.Fraction >= 1 || box.Fraction >= 1 {
			t.Fatalf("(%v %v): ray %v box %v", x, y, ray.Fraction, box.Fraction)
		}
		limit := 2*clipEpsilon/vec.Sub(end, start).Length() + 1e-4
		if d := math32.Abs(ray.Fraction - box.Fraction); d > limit {
			t.Errorf("(%v %v): ray %v box %v", x, y, ray.Fraction, box.Fraction)
		}
		if ray.Facet != box.Facet {
			t.Errorf("(%v %v): ray hit facet %d, box %d", x, y, ray.Facet, box.Facet)
		}
	}
}

func TestTraceTreeMatchesLinearScan(t *testing.T) {
	tris := bumpyGrid(16, 8)
	withTree := buildMesh(t, tris, DefaultBuildOptions())
	opts := DefaultBuildOptions()
	opts.BuildTree = false
	flat := buildMesh(t, tris, opts)

	var tr Tracer
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		start := vec.Vec3{r.Float32() * 128, r.Float32() * 128, 20}
		end := vec.Vec3{r.Float32() * 128, r.Float32() * 128, -10}
		a := tr.Trace(withTree, start, zero, zero, end, Orientation{})
		b := tr.Trace(flat, start, zero, zero, end, Orientation{})
		if a.Fraction != b.Fraction {
			t.Errorf("%v -> %v: tree %v, linear %v", start, end, a.Fraction, b.Fraction)
		}
	}
}

type stripes struct{}

func (stripes) IsMasked(ref int32) bool {
	return ref == 1
}

// SampleAlpha is see through on the left half of the texture.
func (stripes) SampleAlpha(ref int32, u, v float32) byte {
	if u < 0.5 {
		return 0
	}
	return 255
}

func TestTraceMaskedMaterial(t *testing.T) {
	m := buildMesh(t, []Triangle{{Verts: tri(vec.Vec3{0, 0, 0}, vec.Vec3{10, 0, 0}, vec.Vec3{0, 10, 0}), Material: 1}}, DefaultBuildOptions())
	mins := vec.Vec3{-0.5, -0.5, -0.5}
	maxs := vec.Vec3{0.5, 0.5, 0.5}

	tr := Tracer{Materials: stripes{}}
	if got := tr.Trace(m, vec.Vec3{2, 2, 5}, zero, zero, vec.Vec3{2, 2, -5}, Orientation{}); got.Hit() {
		t.Errorf("ray through transparent texel hit: %+v", got)
	}
	if got := tr.Trace(m, vec.Vec3{6, 1, 5}, zero, zero, vec.Vec3{6, 1, -5}, Orientation{}); !got.Hit() {
		t.Errorf("ray through opaque texel missed")
	}
	if got := tr.Trace(m, vec.Vec3{6, 1, 5}, mins, maxs, vec.Vec3{6, 1, -5}, Orientation{}); got.Hit() {
		t.Errorf("box hit a masked facet: %+v", got)
	}

	tr.ForceSolid = true
	if got := tr.Trace(m, vec.Vec3{2, 2, 5}, zero, zero, vec.Vec3{2, 2, -5}, Orientation{}); !got.Hit() {
		t.Errorf("forced solid ray missed")
	}
	if got := tr.Trace(m, vec.Vec3{6, 1, 5}, mins, maxs, vec.Vec3{6, 1, -5}, Orientation{}); !got.Hit() {
		t.Errorf("forced solid box missed")
	}

	var plain Tracer
	if got := plain.Trace(m, vec.Vec3{2, 2, 5}, zero, zero, vec.Vec3{2, 2, -5}, Orientation{}); !got.Hit() {
		t.Errorf("ray without material lookup missed")
	}
}

func TestTraceCapsule(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer
	mins := vec.Vec3{-4, -4, -8}
	maxs := vec.Vec3{4, 4, 8}
	got := tr.TraceCapsule(m, vec.Vec3{2, 2, 20}, mins, maxs, vec.Vec3{2, 2, -20}, Orientation{})
	want := float32((12 - clipEpsilon) / 40)
	if !near(got.Fraction, want, 1e-5) {
		t.Errorf("flat floor: Fraction = %v, want %v", got.Fraction, want)
	}

	// on a slope the rounded bottom gets closer than the box corner
	slope := buildMesh(t, []Triangle{{Verts: tri(vec.Vec3{0, 0, 0}, vec.Vec3{10, 0, 10}, vec.Vec3{0, 10, 0})}}, DefaultBuildOptions())
	box := tr.Trace(slope, vec.Vec3{2, 2, 30}, mins, maxs, vec.Vec3{2, 2, -30}, Orientation{})
	capsule := tr.TraceCapsule(slope, vec.Vec3{2, 2, 30}, mins, maxs, vec.Vec3{2, 2, -30}, Orientation{})
	if box.Fraction >= 1 || capsule.Fraction >= 1 {
		t.Fatalf("box %v capsule %v", box.Fraction, capsule.Fraction)
	}
	if capsule.Fraction <= box.Fraction {
		t.Errorf("capsule stopped at %v, box at %v", capsule.Fraction, box.Fraction)
	}
	if !nearVec(capsule.Plane.Normal, vec.Vec3{-0.70710677, 0, 0.70710677}, 1e-5) {
		t.Errorf("capsule normal = %v", capsule.Plane.Normal)
	}
	wantZ := 2 + (4+4*0.70710677)/0.70710677 + clipEpsilon/0.70710677
	if !near(capsule.EndPos[2], float32(wantZ), 1e-3) {
		t.Errorf("capsule EndPos = %v, want z %v", capsule.EndPos, wantZ)
	}
}

func TestTraceOrientation(t *testing.T) {
	m := floorTriangle(t)
	var tr Tracer

	moved := Orientation{Origin: vec.Vec3{100, 0, 50}}
	got := tr.Trace(m, vec.Vec3{102, 2, 55}, zero, zero, vec.Vec3{102, 2, 45}, moved)
	if !near(got.Fraction, 0.5, 1e-5) || !nearVec(got.EndPos, vec.Vec3{102, 2, 50}, 1e-4) {
		t.Errorf("translated: %+v", got)
	}
	if !near(got.Plane.Dist, 50, 1e-4) {
		t.Errorf("translated plane dist = %v, want 50", got.Plane.Dist)
	}

	// yaw 90 turns local +x into world +y
	turned := Orientation{Origin: vec.Vec3{100, 0, 0}, Angles: vec.Vec3{0, 90, 0}}
	got = tr.Trace(m, vec.Vec3{98, 2, 5}, zero, zero, vec.Vec3{98, 2, -5}, turned)
	if !near(got.Fraction, 0.5, 1e-4) || !nearVec(got.EndPos, vec.Vec3{98, 2, 0}, 1e-3) {
		t.Errorf("rotated: %+v", got)
	}
	if !nearVec(got.Plane.Normal, vec.Vec3{0, 0, 1}, 1e-5) {
		t.Errorf("rotated normal = %v", got.Plane.Normal)
	}
	if got = tr.Trace(m, vec.Vec3{102, 2, 5}, zero, zero, vec.Vec3{102, 2, -5}, turned); got.Hit() {
		t.Errorf("rotated mesh hit outside its footprint: %+v", got)
	}

	// a full turn is the identity
	full := Orientation{Angles: vec.Vec3{0, 360, 0}}
	if xf := full.transform(); xf.rotated {
		t.Errorf("360 degrees counted as rotated")
	}

	box := tr.Trace(m, vec.Vec3{98, 2, 5}, vec.Vec3{-0.5, -0.5, -0.5}, vec.Vec3{0.5, 0.5, 0.5}, vec.Vec3{98, 2, -5}, turned)
	if !near(box.Fraction, (4.5-clipEpsilon)/10, 1e-3) {
		t.Errorf("rotated box Fraction = %v", box.Fraction)
	}
}

func TestTraceEmptyMesh(t *testing.T) {
	b := NewBuilder(Identity{Model: "empty"}, DefaultBuildOptions())
	m, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	var tr Tracer
	got := tr.Trace(m, vec.Vec3{0, 0, 5}, zero, zero, vec.Vec3{0, 0, -5}, Orientation{})
	if got.Hit() {
		t.Errorf("empty mesh hit: %+v", got)
	}
}
