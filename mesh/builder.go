// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hlmesh/conlog"
	"hlmesh/math/vec"
)

const (
	MaxFacetPlanes = 32

	progressInterval = 1024
)

var ErrBuildFinished = errors.New("mesh build already finished")

type BuildOptions struct {
	// MaxTriangles is an estimate used to size the facet arena.
	MaxTriangles   int
	MaxPlanes      int
	MaxFacetPlanes int
	BuildTree      bool
	// Progress is called every few hundred triangles and once at the end.
	Progress func(done, total int)
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxPlanes:      1 << 18,
		MaxFacetPlanes: MaxFacetPlanes,
		BuildTree:      true,
	}
}

// Builder turns triangles into facets. A builder that is dropped before
// Finish leaves nothing behind, which is how a build gets cancelled.
type Builder struct {
	opts      BuildOptions
	mesh      *Mesh
	planes    *PlaneTable
	facetRefs []uint32 // scratch list of the facet in construction
	dropped   bool
	finished  bool
}

func NewBuilder(id Identity, opts BuildOptions) *Builder {
	if opts.MaxFacetPlanes <= 0 || opts.MaxFacetPlanes > MaxFacetPlanes {
		opts.MaxFacetPlanes = MaxFacetPlanes
	}
	if opts.MaxPlanes <= 0 {
		opts.MaxPlanes = DefaultBuildOptions().MaxPlanes
	}
	m := &Mesh{
		Ident:     id,
		Facets:    make([]Facet, 0, opts.MaxTriangles),
		PlaneRefs: make([]uint32, 0, opts.MaxTriangles*8),
	}
	m.Mins, m.Maxs = vec.ClearBounds()
	return &Builder{
		opts:      opts,
		mesh:      m,
		planes:    NewPlaneTable(opts.MaxPlanes),
		facetRefs: make([]uint32, 0, MaxFacetPlanes),
	}
}

// AddTriangle adds one triangle. It returns false for degenerate triangles,
// which are skipped. An error is only returned when the plane pool is full,
// the build can not continue after that.
func (b *Builder) AddTriangle(v [3]Vertex, material int32) (bool, error) {
	if b.finished {
		return false, ErrBuildFinished
	}
	st := &b.mesh.Stats
	st.Triangles++
	if b.opts.Progress != nil && st.Triangles%progressInterval == 0 {
		b.opts.Progress(st.Triangles, b.opts.MaxTriangles)
	}

	normal, dist, ok := PlaneFromPoints(v[0].Pos, v[1].Pos, v[2].Pos)
	if !ok {
		st.Degenerate++
		degenerateTriangles.Inc()
		return false, nil
	}

	f := newFacet(v, material)
	b.facetRefs = b.facetRefs[:0]
	b.dropped = false

	// the order is the priority, planes late in the list get dropped first
	if err := b.addPlane(normal, dist); err != nil {
		return false, err
	}
	if err := b.addPlane(normal.Neg(), -dist); err != nil {
		return false, err
	}
	for i := 0; i < 3; i++ {
		p0 := v[i].Pos
		edge := vec.Sub(v[(i+1)%3].Pos, p0)
		n := vec.Cross(edge, normal).Normalize()
		if err := b.addPlane(n, vec.Dot(n, p0)); err != nil {
			return false, err
		}
	}
	for axis := 0; axis < 3; axis++ {
		var n vec.Vec3
		n[axis] = 1
		if err := b.addPlane(n, f.Maxs[axis]); err != nil {
			return false, err
		}
		n[axis] = -1
		if err := b.addPlane(n, -f.Mins[axis]); err != nil {
			return false, err
		}
	}
	if err := b.addEdgeBevels(v); err != nil {
		return false, err
	}

	if b.dropped {
		st.PlaneOverflow++
		planeOverflows.Inc()
	}
	f.FirstPlane = uint32(len(b.mesh.PlaneRefs))
	f.NumPlanes = uint16(len(b.facetRefs))
	b.mesh.PlaneRefs = append(b.mesh.PlaneRefs, b.facetRefs...)
	b.mesh.Facets = append(b.mesh.Facets, f)
	vec.AddPointToBounds(f.Mins, &b.mesh.Mins, &b.mesh.Maxs)
	vec.AddPointToBounds(f.Maxs, &b.mesh.Mins, &b.mesh.Maxs)
	return true, nil
}

// addEdgeBevels adds the planes through an edge and an axis that have the
// whole triangle behind them. Box sweeps along an edge need them.
func (b *Builder) addEdgeBevels(v [3]Vertex) error {
	for i := 0; i < 3; i++ {
		p0 := v[i].Pos
		edge := vec.Sub(v[(i+1)%3].Pos, p0)
		if edge.Length() < 0.5 {
			continue
		}
		for axis := 0; axis < 3; axis++ {
			for _, dir := range [2]float32{-1, 1} {
				var a vec.Vec3
				a[axis] = dir
				n := vec.Cross(edge, a)
				if n.Length() < 0.5 {
					continue
				}
				n = n.Normalize()
				d := vec.Dot(n, p0)
				behind := true
				for k := 0; k < 3; k++ {
					if vec.Dot(n, v[k].Pos)-d > 0.1 {
						behind = false
						break
					}
				}
				if !behind {
					continue
				}
				if err := b.addPlane(n, d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *Builder) addPlane(normal vec.Vec3, dist float32) error {
	idx, err := b.planes.Intern(normal, dist)
	if err != nil {
		return errors.Wrapf(err, "building %v", b.mesh.Ident)
	}
	for _, r := range b.facetRefs {
		if r == idx {
			return nil
		}
	}
	if len(b.facetRefs) >= b.opts.MaxFacetPlanes {
		b.mesh.Stats.DroppedPlanes++
		b.dropped = true
		return nil
	}
	b.facetRefs = append(b.facetRefs, idx)
	return nil
}

// Finish hands out the mesh. The builder can not be used afterwards.
func (b *Builder) Finish() (*Mesh, error) {
	if b.finished {
		return nil, ErrBuildFinished
	}
	b.finished = true
	m := b.mesh
	b.mesh = nil
	m.Planes = b.planes.Planes()
	b.planes = nil
	if len(m.Facets) == 0 {
		m.Mins, m.Maxs = vec.Vec3{}, vec.Vec3{}
	}
	if b.opts.BuildTree {
		m.BuildAreaTree()
	}
	if b.opts.Progress != nil {
		b.opts.Progress(m.Stats.Triangles, m.Stats.Triangles)
	}
	if m.Stats.PlaneOverflow > 0 {
		conlog.Warn("facets exceeded the plane limit",
			zap.Stringer("mesh", m.Ident),
			zap.Int("facets", m.Stats.PlaneOverflow),
			zap.Int("dropped", m.Stats.DroppedPlanes))
	}
	conlog.Debug("mesh built",
		zap.Stringer("mesh", m.Ident),
		zap.Int("triangles", m.Stats.Triangles),
		zap.Int("facets", len(m.Facets)),
		zap.Int("planes", len(m.Planes)),
		zap.Int("nodes", len(m.Nodes)),
		zap.Int("degenerate", m.Stats.Degenerate))
	meshBuilds.Inc()
	return m, nil
}
