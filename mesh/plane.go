// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"hlmesh/math/vec"
)

const (
	PlaneX = iota
	PlaneY
	PlaneZ
	PlaneAnyX
	PlaneAnyY
	PlaneAnyZ
	PlaneNonAxial
)

const (
	snapEpsilon        = 0.00001
	distSnapEpsilon    = 0.01
	planeNormalEpsilon = 0.00001
	planeDistEpsilon   = 0.01
	nearAxisThreshold  = 0.8
	degenerateEpsilon  = 0.0001

	planeHashes = 1024 // power of two
)

var ErrPlanePoolExhausted = errors.New("plane pool exhausted")

type Plane struct {
	Normal   vec.Vec3
	Dist     float32
	Type     byte
	SignBits byte
}

func planeTypeForNormal(n vec.Vec3) byte {
	for i := 0; i < 3; i++ {
		if n[i] == 1 || n[i] == -1 {
			return byte(PlaneX + i)
		}
	}
	a := n.Abs()
	axis := 0
	if a[1] > a[axis] {
		axis = 1
	}
	if a[2] > a[axis] {
		axis = 2
	}
	if a[axis] >= nearAxisThreshold {
		return byte(PlaneAnyX + axis)
	}
	return PlaneNonAxial
}

func signBitsForNormal(n vec.Vec3) byte {
	var bits byte
	for i := 0; i < 3; i++ {
		if n[i] < 0 {
			bits |= 1 << i
		}
	}
	return bits
}

// snapNormal makes nearly axial normals exactly axial so they hash and
// compare equal.
func snapNormal(n vec.Vec3) vec.Vec3 {
	for i := 0; i < 3; i++ {
		if math32.Abs(n[i]-1) < snapEpsilon {
			var r vec.Vec3
			r[i] = 1
			return r
		}
		if math32.Abs(n[i]+1) < snapEpsilon {
			var r vec.Vec3
			r[i] = -1
			return r
		}
	}
	snapped := false
	for i := 0; i < 3; i++ {
		if n[i] != 0 && math32.Abs(n[i]) < snapEpsilon {
			n[i] = 0
			snapped = true
		}
	}
	if snapped {
		n = n.Normalize()
	}
	return n
}

func snapDist(d float32) float32 {
	r := math32.Round(d)
	if math32.Abs(d-r) < distSnapEpsilon {
		return r
	}
	return d
}

// PlaneEqual compares within the epsilons used for plane sharing.
func PlaneEqual(p *Plane, normal vec.Vec3, dist float32) bool {
	return math32.Abs(p.Normal[0]-normal[0]) < planeNormalEpsilon &&
		math32.Abs(p.Normal[1]-normal[1]) < planeNormalEpsilon &&
		math32.Abs(p.Normal[2]-normal[2]) < planeNormalEpsilon &&
		math32.Abs(p.Dist-dist) < planeDistEpsilon
}

// PlaneFromPoints returns the plane of a counter clockwise triangle. ok is
// false if the triangle has no area.
func PlaneFromPoints(a, b, c vec.Vec3) (normal vec.Vec3, dist float32, ok bool) {
	n := vec.Cross(vec.Sub(b, a), vec.Sub(c, a))
	l := n.Length()
	if l < degenerateEpsilon {
		return vec.Vec3{}, 0, false
	}
	normal = n.Scale(1 / l)
	return normal, vec.Dot(a, normal), true
}

// planeHash buckets planes by distance in steps of 8 units. Planes within
// planeDistEpsilon of each other are at most one bucket apart.
func planeHash(dist float32) int {
	return int(math32.Mod(math32.Floor(math32.Abs(dist)/8), planeHashes))
}

// PlaneTable stores every plane of one build once. It belongs to a single
// build session and is not safe for concurrent use.
type PlaneTable struct {
	planes   []Plane
	next     []int32 // hash chain, parallel to planes
	buckets  [planeHashes]int32
	capacity int
}

func NewPlaneTable(capacity int) *PlaneTable {
	t := &PlaneTable{capacity: capacity}
	for i := range t.buckets {
		t.buckets[i] = -1
	}
	return t
}

// Intern returns the index of the plane, adding it if no equal plane exists.
func (t *PlaneTable) Intern(normal vec.Vec3, dist float32) (uint32, error) {
	normal = snapNormal(normal)
	dist = snapDist(dist)

	h := planeHash(dist)
	for d := -1; d <= 1; d++ {
		for i := t.buckets[(h+d)&(planeHashes-1)]; i >= 0; i = t.next[i] {
			if PlaneEqual(&t.planes[i], normal, dist) {
				return uint32(i), nil
			}
		}
	}
	if len(t.planes) >= t.capacity {
		return 0, errors.Wrapf(ErrPlanePoolExhausted, "limit %d", t.capacity)
	}
	idx := int32(len(t.planes))
	t.planes = append(t.planes, Plane{
		Normal:   normal,
		Dist:     dist,
		Type:     planeTypeForNormal(normal),
		SignBits: signBitsForNormal(normal),
	})
	t.next = append(t.next, t.buckets[h])
	t.buckets[h] = idx
	return uint32(idx), nil
}

func (t *PlaneTable) Len() int {
	return len(t.planes)
}

func (t *PlaneTable) Plane(i uint32) Plane {
	return t.planes[i]
}

// Planes returns a copy of the pool.
func (t *PlaneTable) Planes() []Plane {
	r := make([]Plane, len(t.planes))
	copy(r, t.planes)
	return r
}

// NewPlane classifies a plane read back from storage.
func NewPlane(normal vec.Vec3, dist float32) Plane {
	return Plane{
		Normal:   normal,
		Dist:     dist,
		Type:     planeTypeForNormal(normal),
		SignBits: signBitsForNormal(normal),
	}
}

// distTo returns the signed distance of p to the plane shifted by dist.
func (p *Plane) distTo(v vec.Vec3, dist float32) float32 {
	if p.Type < 3 {
		return v[p.Type]*p.Normal[p.Type] - dist
	}
	return vec.Dot(v, p.Normal) - dist
}
