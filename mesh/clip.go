// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"github.com/chewxy/math32"

	"hlmesh/math/vec"
)

const (
	clipEpsilon     = 0.03125 // (1/32) to keep floating point happy
	fracEpsilon     = 0.00001
	coplanarEpsilon = 0.000001
	baryEpsilon     = 0.0001
)

// clipBoxToFacet clips the move against the convex volume spanned by the
// facet planes, each moved out by the box or capsule extents.
func (c *moveClip) clipBoxToFacet(fi int32, f *Facet) {
	if c.masked(f.Material) {
		return
	}
	m := c.mesh
	enter := float32(-1)
	leave := float32(1)
	var clipPlane *Plane
	getOut := false
	startOut := false

	for _, pi := range m.PlaneRefs[f.FirstPlane : f.FirstPlane+uint32(f.NumPlanes)] {
		p := &m.Planes[pi]
		var dist float32
		if c.kind == traceCapsule {
			dist = p.Dist + c.radius + c.half*math32.Abs(p.Normal[2])
		} else {
			dist = p.Dist - vec.Dot(c.offsets[p.SignBits], p.Normal)
		}
		d1 := p.distTo(c.start, dist)
		d2 := p.distTo(c.end, dist)

		if d2 > 0 {
			getOut = true // endpoint is not in solid
		}
		if d1 > 0 {
			startOut = true
		}
		// completely in front of the face, no intersection
		if d1 > 0 && (d2 >= clipEpsilon || d2 >= d1) {
			return
		}
		if d1 <= 0 && d2 <= 0 {
			continue
		}
		if d1 > d2 {
			// enter
			frac := (d1 - clipEpsilon) / (d1 - d2)
			if frac < 0 {
				frac = 0
			}
			if frac > enter {
				enter = frac
				clipPlane = p
			}
		} else {
			// leave
			frac := (d1 + clipEpsilon) / (d1 - d2)
			if frac > 1 {
				frac = 1
			}
			if frac < leave {
				leave = frac
			}
		}
	}

	if !startOut {
		// original point was inside the facet
		c.trace.StartSolid = true
		c.trace.Material = f.Material
		c.trace.Facet = fi
		if !getOut {
			c.trace.AllSolid = true
			c.trace.Fraction = 0
		}
		return
	}
	if enter-fracEpsilon <= leave && enter > -1 && enter < c.trace.Fraction {
		if enter < 0 {
			enter = 0
		}
		c.trace.Fraction = enter
		c.trace.Plane = TracePlane{Normal: clipPlane.Normal, Dist: clipPlane.Dist}
		c.trace.Material = f.Material
		c.trace.Facet = fi
	}
}

// clipRayToFacet intersects the ray with the facet triangle.
func (c *moveClip) clipRayToFacet(fi int32, f *Facet) {
	pvec := vec.Cross(c.dir, f.Edge2)
	det := vec.Dot(f.Edge1, pvec)
	if math32.Abs(det) < coplanarEpsilon {
		return // parallel to the triangle
	}
	inv := 1 / det

	tvec := vec.Sub(c.start, f.Verts[0].Pos)
	u := vec.Dot(tvec, pvec) * inv
	if u < -baryEpsilon || u > 1+baryEpsilon {
		return
	}
	qvec := vec.Cross(tvec, f.Edge1)
	v := vec.Dot(c.dir, qvec) * inv
	if v < -baryEpsilon || u+v > 1+baryEpsilon {
		return
	}
	depth := vec.Dot(f.Edge2, qvec) * inv
	if depth <= 0 || depth >= c.length {
		return
	}
	frac := depth / c.length
	if frac >= c.trace.Fraction {
		return
	}

	if c.masked(f.Material) {
		w := 1 - u - v
		s := w*f.Verts[0].U + u*f.Verts[1].U + v*f.Verts[2].U
		t := w*f.Verts[0].V + u*f.Verts[1].V + v*f.Verts[2].V
		if c.tracer.Materials.SampleAlpha(f.Material, s, t) == 0 {
			return
		}
	}

	n := vec.Cross(f.Edge1, f.Edge2).Normalize()
	if vec.Dot(n, c.dir) > 0 {
		n = n.Neg()
	}
	c.trace.Fraction = frac
	c.trace.Plane = TracePlane{Normal: n, Dist: vec.Dot(n, f.Verts[0].Pos)}
	c.trace.Material = f.Material
	c.trace.Facet = fi
}
