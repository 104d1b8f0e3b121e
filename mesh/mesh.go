// SPDX-License-Identifier: GPL-2.0-or-later

// Package mesh builds collision meshes from triangle soup and traces points,
// rays, boxes and capsules against them.
//
// A Mesh is immutable once Builder.Finish (or the cache loader) returned it and
// can be traced from any number of goroutines.
package mesh

import (
	"fmt"
	"time"

	"hlmesh/math/vec"
)

// GeometryKind tells where the triangles of a mesh came from.
type GeometryKind uint8

const (
	KindStudio GeometryKind = iota // posed studio model triangles
	KindBrush                      // brush surface triangles
	KindCooked                     // shapes cooked by the engine
)

func (k GeometryKind) String() string {
	switch k {
	case KindStudio:
		return "studio"
	case KindBrush:
		return "brush"
	case KindCooked:
		return "cooked"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseGeometryKind is the inverse of GeometryKind.String.
func ParseGeometryKind(s string) (GeometryKind, error) {
	for k := KindStudio; k <= KindCooked; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown geometry kind %q", s)
}

// Identity is what a mesh was built from. It keys the cache file.
type Identity struct {
	Model   string
	Body    int32
	Skin    int32
	Kind    GeometryKind
	ModTime time.Time
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (body %d, skin %d, %v)", id.Model, id.Body, id.Skin, id.Kind)
}

// Same reports whether both identities describe the same source state.
func (id Identity) Same(o Identity) bool {
	return id.Model == o.Model &&
		id.Body == o.Body &&
		id.Skin == o.Skin &&
		id.Kind == o.Kind &&
		id.ModTime.UnixNano() == o.ModTime.UnixNano()
}

type Vertex struct {
	Pos  vec.Vec3
	U, V float32
}

// Triangle is the unit the model collaborators hand over.
type Triangle struct {
	Verts    [3]Vertex
	Material int32
}

type Facet struct {
	Verts    [3]Vertex
	Edge1    vec.Vec3 // Verts[1] - Verts[0]
	Edge2    vec.Vec3 // Verts[2] - Verts[0]
	Material int32
	Mins     vec.Vec3
	Maxs     vec.Vec3

	// planes are Mesh.PlaneRefs[FirstPlane:FirstPlane+NumPlanes]
	FirstPlane uint32
	NumPlanes  uint16
}

func newFacet(v [3]Vertex, material int32) Facet {
	f := Facet{
		Verts:    v,
		Edge1:    vec.Sub(v[1].Pos, v[0].Pos),
		Edge2:    vec.Sub(v[2].Pos, v[0].Pos),
		Material: material,
	}
	f.Mins, f.Maxs = vec.ClearBounds()
	for i := range v {
		vec.AddPointToBounds(v[i].Pos, &f.Mins, &f.Maxs)
	}
	return f
}

// BuildStats are diagnostics of one build. They are not persisted.
type BuildStats struct {
	Triangles     int
	Degenerate    int
	PlaneOverflow int // facets which lost planes
	DroppedPlanes int
}

type Mesh struct {
	Ident Identity
	Mins  vec.Vec3
	Maxs  vec.Vec3

	Planes    []Plane
	Facets    []Facet
	PlaneRefs []uint32

	// Nodes is empty for meshes built without an area tree, the root is Nodes[0].
	Nodes     []AreaNode
	FacetRefs []int32

	Stats BuildStats
}

// FacetPlanes returns the plane indices of facet i.
func (m *Mesh) FacetPlanes(i int) []uint32 {
	f := &m.Facets[i]
	return m.PlaneRefs[f.FirstPlane : f.FirstPlane+uint32(f.NumPlanes)]
}

// NewFacet recomputes the derived data of a facet whose vertices and plane
// list are known, as the cache loader needs.
func NewFacet(v [3]Vertex, material int32, firstPlane uint32, numPlanes uint16) Facet {
	f := newFacet(v, material)
	f.FirstPlane = firstPlane
	f.NumPlanes = numPlanes
	return f
}

// SetBounds recomputes the mesh bounds from the facets.
func (m *Mesh) SetBounds() {
	if len(m.Facets) == 0 {
		m.Mins, m.Maxs = vec.Vec3{}, vec.Vec3{}
		return
	}
	m.Mins, m.Maxs = vec.ClearBounds()
	for i := range m.Facets {
		vec.AddPointToBounds(m.Facets[i].Mins, &m.Mins, &m.Maxs)
		vec.AddPointToBounds(m.Facets[i].Maxs, &m.Mins, &m.Maxs)
	}
}
