// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"hlmesh/math/vec"
)

const (
	MaxAreaDepth = 5
	// nodes with fewer facets are not split any further
	areaMinFacets = 8
)

// AreaNode splits its box in half along Axis. Facets which cross the split
// stay linked in the node itself, the others move down. Children[0] is the
// side above Dist.
type AreaNode struct {
	Axis     int8 // -1 for leafs
	Dist     float32
	Children [2]int32

	// facets are Mesh.FacetRefs[FirstFacet:FirstFacet+NumFacets]
	FirstFacet uint32
	NumFacets  uint32
}

// BuildAreaTree replaces the tree of the mesh. It is called by the builder;
// after that the tree does not change.
func (m *Mesh) BuildAreaTree() {
	m.Nodes = make([]AreaNode, 0, 1<<(MaxAreaDepth+1)-1)
	m.FacetRefs = make([]int32, 0, len(m.Facets))
	facets := make([]int32, len(m.Facets))
	for i := range facets {
		facets[i] = int32(i)
	}
	m.createAreaNode(0, m.Mins, m.Maxs, facets)
}

func (m *Mesh) createAreaNode(depth int, mins, maxs vec.Vec3, facets []int32) int32 {
	idx := int32(len(m.Nodes))
	m.Nodes = append(m.Nodes, AreaNode{
		Axis:     -1,
		Children: [2]int32{-1, -1},
	})
	if depth == MaxAreaDepth || len(facets) < areaMinFacets {
		m.linkFacets(idx, facets)
		return idx
	}

	s := vec.Sub(maxs, mins)
	axis := 0
	if s[1] > s[axis] {
		axis = 1
	}
	if s[2] > s[axis] {
		axis = 2
	}
	dist := 0.5 * (maxs[axis] + mins[axis])

	var above, below, cross []int32
	for _, fi := range facets {
		f := &m.Facets[fi]
		switch {
		case f.Mins[axis] > dist:
			above = append(above, fi)
		case f.Maxs[axis] < dist:
			below = append(below, fi)
		default:
			cross = append(cross, fi)
		}
	}
	m.linkFacets(idx, cross)

	maxs1 := maxs
	mins2 := mins
	maxs1[axis] = dist
	mins2[axis] = dist
	c0 := m.createAreaNode(depth+1, mins2, maxs, above)
	c1 := m.createAreaNode(depth+1, mins, maxs1, below)

	n := &m.Nodes[idx]
	n.Axis = int8(axis)
	n.Dist = dist
	n.Children = [2]int32{c0, c1}
	return idx
}

func (m *Mesh) linkFacets(node int32, facets []int32) {
	n := &m.Nodes[node]
	n.FirstFacet = uint32(len(m.FacetRefs))
	n.NumFacets = uint32(len(facets))
	m.FacetRefs = append(m.FacetRefs, facets...)
}

// areaFacets walks the nodes the box can touch and calls fn for each linked
// facet. fn returns false to end the walk.
func (m *Mesh) areaFacets(node int32, mins, maxs vec.Vec3, fn func(int32) bool) bool {
	n := &m.Nodes[node]
	for _, fi := range m.FacetRefs[n.FirstFacet : n.FirstFacet+n.NumFacets] {
		if !fn(fi) {
			return false
		}
	}
	if n.Axis == -1 {
		return true
	}
	if maxs[n.Axis] > n.Dist {
		if !m.areaFacets(n.Children[0], mins, maxs, fn) {
			return false
		}
	}
	if mins[n.Axis] < n.Dist {
		return m.areaFacets(n.Children[1], mins, maxs, fn)
	}
	return true
}

// FacetsInBox calls fn with the index of every facet whose bounds touch the
// box, using the area tree when the mesh has one.
func (m *Mesh) FacetsInBox(mins, maxs vec.Vec3, fn func(int) bool) {
	visit := func(fi int32) bool {
		f := &m.Facets[fi]
		if !vec.BoundsOverlap(f.Mins, f.Maxs, mins, maxs) {
			return true
		}
		return fn(int(fi))
	}
	if len(m.Nodes) == 0 {
		for i := range m.Facets {
			if !visit(int32(i)) {
				return
			}
		}
		return
	}
	m.areaFacets(0, mins, maxs, visit)
}
