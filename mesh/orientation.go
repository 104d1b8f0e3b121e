// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"hlmesh/math"
	"hlmesh/math/vec"
)

// Orientation places a mesh in the world. Angles are pitch, yaw, roll in
// degrees.
type Orientation struct {
	Origin vec.Vec3
	Angles vec.Vec3
}

type transform struct {
	origin  vec.Vec3
	rot     mgl32.Mat3 // local to world
	inv     mgl32.Mat3 // world to local
	rotated bool
}

func (o Orientation) transform() transform {
	t := transform{
		origin: o.Origin,
		rot:    mgl32.Ident3(),
		inv:    mgl32.Ident3(),
	}
	for i := 0; i < 3; i++ {
		if math.AngleMod32(o.Angles[i]) != 0 {
			t.rotated = true
		}
	}
	if !t.rotated {
		return t
	}
	forward, right, up := vec.AngleVectors(o.Angles)
	left := right.Neg()
	t.rot = mgl32.Mat3FromCols(mgl32.Vec3(forward), mgl32.Vec3(left), mgl32.Vec3(up))
	t.inv = t.rot.Transpose()
	return t
}

func (t *transform) toLocal(p vec.Vec3) vec.Vec3 {
	p = vec.Sub(p, t.origin)
	if !t.rotated {
		return p
	}
	return vec.Vec3(t.inv.Mul3x1(mgl32.Vec3(p)))
}

func (t *transform) dirToWorld(d vec.Vec3) vec.Vec3 {
	if !t.rotated {
		return d
	}
	return vec.Vec3(t.rot.Mul3x1(mgl32.Vec3(d)))
}

// extentsToLocal returns half sizes of a local box that contains the rotated
// world box.
func (t *transform) extentsToLocal(ext vec.Vec3) vec.Vec3 {
	if !t.rotated {
		return ext
	}
	var r vec.Vec3
	for i := 0; i < 3; i++ {
		row := t.inv.Row(i)
		r[i] = vec.Dot(vec.Vec3(row).Abs(), ext)
	}
	return r
}
