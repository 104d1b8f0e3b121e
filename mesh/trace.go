// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"hlmesh/math/vec"
)

type TracePlane struct {
	Normal vec.Vec3
	Dist   float32
}

// Trace is the result of one query. A fraction of 1 means nothing was hit.
type Trace struct {
	AllSolid   bool // the whole move was inside a facet volume
	StartSolid bool
	Fraction   float32
	EndPos     vec.Vec3
	Plane      TracePlane
	Material   int32 // -1 if nothing was hit
	Facet      int32 // -1 if nothing was hit
}

// Hit reports whether anything blocked the move.
func (t Trace) Hit() bool {
	return t.Fraction < 1 || t.StartSolid
}

type testKind int

const (
	testPosition testKind = iota
	traceLine
	traceBox
	traceCapsule
)

// Tracer runs queries against meshes. It holds no per query state and can
// be shared.
//
// Query input is not validated: mins must not exceed maxs and all values must
// be finite, otherwise the result is undefined.
type Tracer struct {
	// Materials decides about alpha tested materials, nil makes all of
	// them solid.
	Materials MaterialLookup
	// ForceSolid treats masked materials as solid for every query.
	ForceSolid bool
}

type moveClip struct {
	mesh   *Mesh
	tracer *Tracer
	kind   testKind

	// all in mesh space with the box offset applied
	start, end       vec.Vec3
	extents          vec.Vec3
	offsets          [8]vec.Vec3
	radius, half     float32 // capsule
	dir              vec.Vec3
	length           float32
	boxmins, boxmaxs vec.Vec3

	trace Trace
}

// Trace moves the box mins/maxs from start to end through the mesh. A zero
// sized box is traced as a ray.
func (t *Tracer) Trace(m *Mesh, start, mins, maxs, end vec.Vec3, o Orientation) Trace {
	return t.move(m, start, mins, maxs, end, o, false)
}

// TraceCapsule moves an upright capsule which fits into mins/maxs.
func (t *Tracer) TraceCapsule(m *Mesh, start, mins, maxs, end vec.Vec3, o Orientation) Trace {
	return t.move(m, start, mins, maxs, end, o, true)
}

// TestPosition checks whether the box at origin is inside any facet volume.
func (t *Tracer) TestPosition(m *Mesh, origin, mins, maxs vec.Vec3, o Orientation) Trace {
	return t.move(m, origin, mins, maxs, origin, o, false)
}

func (t *Tracer) move(m *Mesh, start, mins, maxs, end vec.Vec3, o Orientation, capsule bool) Trace {
	xf := o.transform()
	offset := vec.Add(mins, maxs).Scale(0.5)
	c := moveClip{
		mesh:    m,
		tracer:  t,
		start:   xf.toLocal(vec.Add(start, offset)),
		end:     xf.toLocal(vec.Add(end, offset)),
		extents: xf.extentsToLocal(vec.Sub(maxs, mins).Scale(0.5)),
		trace: Trace{
			Fraction: 1,
			Material: -1,
			Facet:    -1,
		},
	}
	switch {
	case start == end:
		c.kind = testPosition
	case c.extents == vec.Vec3{}:
		c.kind = traceLine
	case capsule:
		c.kind = traceCapsule
	default:
		c.kind = traceBox
	}
	c.setup()

	if len(m.Facets) != 0 && vec.BoundsOverlap(c.boxmins, c.boxmaxs, m.Mins, m.Maxs) {
		if len(m.Nodes) == 0 {
			for i := range m.Facets {
				if !c.clipFacet(int32(i)) {
					break
				}
			}
		} else {
			c.clipToLinks(0)
		}
	}

	tr := c.trace
	if tr.Fraction == 1 {
		tr.EndPos = end
		return tr
	}
	tr.EndPos = vec.Lerp(start, end, tr.Fraction)
	n := xf.dirToWorld(tr.Plane.Normal)
	tr.Plane = TracePlane{
		Normal: n,
		Dist:   tr.Plane.Dist + vec.Dot(n, xf.origin),
	}
	return tr
}

func (c *moveClip) setup() {
	e := c.extents
	for i := range c.offsets {
		for j := 0; j < 3; j++ {
			if i&(1<<j) != 0 {
				c.offsets[i][j] = e[j]
			} else {
				c.offsets[i][j] = -e[j]
			}
		}
	}
	if c.kind == traceCapsule {
		c.radius = min(e[0], e[1])
		c.half = max(e[2]-c.radius, 0)
	}
	if c.kind == traceLine {
		d := vec.Sub(c.end, c.start)
		c.length = d.Length()
		c.dir = d.Scale(1 / c.length)
	}

	// because movement is clipped an epsilon away from an actual edge,
	// we must fully check even when bounding boxes don't quite touch
	lo, hi := vec.MinMax(c.start, c.end)
	c.boxmins = vec.Sub(vec.Sub(lo, e), vec.Vec3{1, 1, 1})
	c.boxmaxs = vec.Add(vec.Add(hi, e), vec.Vec3{1, 1, 1})
}

func (c *moveClip) clipToLinks(node int32) {
	c.mesh.areaFacets(node, c.boxmins, c.boxmaxs, c.clipFacet)
}

// clipFacet returns false once the move is fully blocked.
func (c *moveClip) clipFacet(fi int32) bool {
	f := &c.mesh.Facets[fi]
	if !vec.BoundsOverlap(f.Mins, f.Maxs, c.boxmins, c.boxmaxs) {
		return true
	}
	if c.kind == traceLine {
		c.clipRayToFacet(fi, f)
	} else {
		c.clipBoxToFacet(fi, f)
	}
	return c.trace.Fraction > 0
}

func (c *moveClip) masked(ref int32) bool {
	t := c.tracer
	return !t.ForceSolid && t.Materials != nil && t.Materials.IsMasked(ref)
}
