// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"math/rand"
	"sort"
	"testing"

	"hlmesh/math/vec"
)

func TestAreaTreeLinksEveryFacetOnce(t *testing.T) {
	m := buildMesh(t, bumpyGrid(20, 8), DefaultBuildOptions())
	if len(m.Nodes) < 3 {
		t.Fatalf("tree has %d nodes", len(m.Nodes))
	}
	if len(m.FacetRefs) != len(m.Facets) {
		t.Errorf("%d facet refs for %d facets", len(m.FacetRefs), len(m.Facets))
	}
	count := make([]int, len(m.Facets))
	for _, fi := range m.FacetRefs {
		count[fi]++
	}
	for i, c := range count {
		if c != 1 {
			t.Errorf("facet %d linked %d times", i, c)
		}
	}
	for i, n := range m.Nodes {
		if n.Axis == -1 {
			continue
		}
		for _, c := range n.Children {
			if c <= int32(i) || int(c) >= len(m.Nodes) {
				t.Errorf("node %d has child %d", i, c)
			}
		}
	}
}

func TestAreaTreeDepth(t *testing.T) {
	m := buildMesh(t, bumpyGrid(40, 2), DefaultBuildOptions())
	var depth func(n int32) int
	depth = func(n int32) int {
		node := &m.Nodes[n]
		if node.Axis == -1 {
			return 0
		}
		return 1 + max(depth(node.Children[0]), depth(node.Children[1]))
	}
	if d := depth(0); d != MaxAreaDepth {
		t.Errorf("depth = %d, want %d", d, MaxAreaDepth)
	}
}

func TestAreaTreeSplitAxis(t *testing.T) {
	// the grid is flat in z and square in x/y, ties go to x
	m := buildMesh(t, bumpyGrid(8, 10), DefaultBuildOptions())
	root := m.Nodes[0]
	if root.Axis != 0 {
		t.Errorf("root axis = %d, want 0", root.Axis)
	}
	if root.Dist != 40 {
		t.Errorf("root dist = %v, want 40", root.Dist)
	}
	for _, fi := range m.FacetRefs[root.FirstFacet : root.FirstFacet+root.NumFacets] {
		f := &m.Facets[fi]
		if f.Mins[0] > root.Dist || f.Maxs[0] < root.Dist {
			t.Errorf("facet %d linked at the root does not cross it", fi)
		}
	}
}

func TestAreaTreeSmallMeshIsLeaf(t *testing.T) {
	m := buildMesh(t, bumpyGrid(2, 10)[:areaMinFacets-1], DefaultBuildOptions())
	if len(m.Nodes) != 1 || m.Nodes[0].Axis != -1 || m.Nodes[0].NumFacets != areaMinFacets-1 {
		t.Errorf("nodes = %+v", m.Nodes)
	}
}

func collectFacets(m *Mesh, mins, maxs vec.Vec3) []int {
	var r []int
	m.FacetsInBox(mins, maxs, func(i int) bool {
		r = append(r, i)
		return true
	})
	sort.Ints(r)
	return r
}

func TestFacetsInBoxMatchesBruteForce(t *testing.T) {
	tris := bumpyGrid(24, 8)
	withTree := buildMesh(t, tris, DefaultBuildOptions())
	opts := DefaultBuildOptions()
	opts.BuildTree = false
	flat := buildMesh(t, tris, opts)
	if len(flat.Nodes) != 0 {
		t.Fatalf("mesh without tree has %d nodes", len(flat.Nodes))
	}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var mins, maxs vec.Vec3
		for j := 0; j < 3; j++ {
			a := r.Float32()*220 - 10
			b := a + r.Float32()*40
			mins[j], maxs[j] = a, b
		}
		mins[2], maxs[2] = -5, 15
		got := collectFacets(withTree, mins, maxs)
		want := collectFacets(flat, mins, maxs)
		if len(got) != len(want) {
			t.Fatalf("box %v %v: tree found %d facets, brute force %d", mins, maxs, len(got), len(want))
		}
		for k := range got {
			if got[k] != want[k] {
				t.Fatalf("box %v %v: facet lists differ", mins, maxs)
			}
		}
	}
}

func TestFacetsInBoxStops(t *testing.T) {
	m := buildMesh(t, bumpyGrid(10, 8), DefaultBuildOptions())
	n := 0
	m.FacetsInBox(m.Mins, m.Maxs, func(int) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("visited %d facets after stop, want 3", n)
	}
}
