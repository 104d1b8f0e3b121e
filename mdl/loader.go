// SPDX-License-Identifier: GPL-2.0-or-later

// Package mdl reads alias models as a triangle source for collision meshes.
package mdl

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"hlmesh/filesystem"
	"hlmesh/math"
	"hlmesh/math/vec"
	"hlmesh/mesh"
	"hlmesh/model"
)

var ErrInvalid = errors.New("invalid alias model")

func init() {
	model.Register(Magic, Load)
}

// Model is a parsed alias model. Body selects the pose, skin the skin. Group
// frames contribute one pose per member frame.
type Model struct {
	name    string
	modTime time.Time
	flags   int32

	scale  vec.Vec3
	origin vec.Vec3

	skinWidth  int
	skinHeight int
	skins      [][]byte // first picture of every skin
	stverts    []skinVertex
	tris       []triangle
	poses      [][]frameVertex
}

func invalid(name, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, "%s: "+format, append([]interface{}{name}, args...)...)
}

// Load parses an alias model. It matches model.LoadFunc.
func Load(name string, file filesystem.File, modTime time.Time) (model.Model, error) {
	m, err := load(name, file, modTime)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func load(name string, file io.Reader, modTime time.Time) (*Model, error) {
	r := bufio.NewReader(file)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, invalid(name, "header: %v", err)
	}
	if h.ID != Magic {
		return nil, invalid(name, "wrong magic %x", h.ID)
	}
	if h.Version != aliasVersion {
		return nil, invalid(name, "version %d, want %d", h.Version, aliasVersion)
	}
	switch {
	case h.SkinCount < 1 || h.SkinCount > maxSkins:
		return nil, invalid(name, "%d skins", h.SkinCount)
	case h.SkinWidth <= 0 || h.SkinHeight <= 0 || h.SkinWidth*h.SkinHeight > 1<<22:
		return nil, invalid(name, "skin size %dx%d", h.SkinWidth, h.SkinHeight)
	case h.VerticeCount < 3 || h.VerticeCount > maxVertices:
		return nil, invalid(name, "%d vertices", h.VerticeCount)
	case h.TriangleCount < 1 || h.TriangleCount > maxTriangles:
		return nil, invalid(name, "%d triangles", h.TriangleCount)
	case h.FrameCount < 1 || h.FrameCount > maxFrames:
		return nil, invalid(name, "%d frames", h.FrameCount)
	}

	m := &Model{
		name:       name,
		modTime:    modTime,
		flags:      h.Flags,
		scale:      vec.Vec3(h.Scale),
		origin:     vec.Vec3(h.ScaleOrigin),
		skinWidth:  int(h.SkinWidth),
		skinHeight: int(h.SkinHeight),
	}
	if err := m.loadSkins(r, int(h.SkinCount)); err != nil {
		return nil, err
	}

	m.stverts = make([]skinVertex, h.VerticeCount)
	if err := binary.Read(r, binary.LittleEndian, m.stverts); err != nil {
		return nil, invalid(name, "skin vertices: %v", err)
	}
	m.tris = make([]triangle, h.TriangleCount)
	if err := binary.Read(r, binary.LittleEndian, m.tris); err != nil {
		return nil, invalid(name, "triangles: %v", err)
	}
	for i, t := range m.tris {
		for _, v := range t.Vertices {
			if v < 0 || v >= h.VerticeCount {
				return nil, invalid(name, "triangle %d uses vertex %d", i, v)
			}
		}
	}

	for i := 0; i < int(h.FrameCount); i++ {
		if err := m.loadFrame(r, int(h.VerticeCount)); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
	}
	return m, nil
}

func (m *Model) loadSkins(r io.Reader, count int) error {
	size := m.skinWidth * m.skinHeight
	for i := 0; i < count; i++ {
		var kind int32
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return invalid(m.name, "skin %d: %v", i, err)
		}
		pictures := 1
		if kind == ALIAS_SKIN_GROUP {
			var n int32
			if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
				return invalid(m.name, "skin group %d: %v", i, err)
			}
			if n < 1 || n > 256 {
				return invalid(m.name, "skin group %d has %d pictures", i, n)
			}
			pictures = int(n)
			intervals := make([]float32, n)
			if err := binary.Read(r, binary.LittleEndian, intervals); err != nil {
				return invalid(m.name, "skin group %d: %v", i, err)
			}
		}
		for j := 0; j < pictures; j++ {
			pic := make([]byte, size)
			if _, err := io.ReadFull(r, pic); err != nil {
				return invalid(m.name, "skin %d: %v", i, err)
			}
			if j == 0 {
				m.skins = append(m.skins, pic)
			}
		}
	}
	return nil
}

func (m *Model) loadFrame(r io.Reader, numVerts int) error {
	var kind int32
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return invalid(m.name, "%v", err)
	}
	frames := 1
	if kind == ALIAS_GROUP {
		var g groupHeader
		if err := binary.Read(r, binary.LittleEndian, &g); err != nil {
			return invalid(m.name, "group: %v", err)
		}
		if g.FrameCount < 1 || g.FrameCount > maxFrames {
			return invalid(m.name, "group of %d frames", g.FrameCount)
		}
		frames = int(g.FrameCount)
		intervals := make([]float32, frames)
		if err := binary.Read(r, binary.LittleEndian, intervals); err != nil {
			return invalid(m.name, "group intervals: %v", err)
		}
	}
	for i := 0; i < frames; i++ {
		var fh frameHeader
		if err := binary.Read(r, binary.LittleEndian, &fh); err != nil {
			return invalid(m.name, "frame header: %v", err)
		}
		pose := make([]frameVertex, numVerts)
		if err := binary.Read(r, binary.LittleEndian, pose); err != nil {
			return invalid(m.name, "frame vertices: %v", err)
		}
		m.poses = append(m.poses, pose)
	}
	return nil
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) ModTime() time.Time {
	return m.modTime
}

func (m *Model) NumPoses() int {
	return len(m.poses)
}

func (m *Model) NumSkins() int {
	return len(m.skins)
}

func (m *Model) Flags() int {
	return int(m.flags)
}

func (m *Model) position(v frameVertex) vec.Vec3 {
	return vec.Vec3{
		float32(v.PackedPosition[0])*m.scale[0] + m.origin[0],
		float32(v.PackedPosition[1])*m.scale[1] + m.origin[1],
		float32(v.PackedPosition[2])*m.scale[2] + m.origin[2],
	}
}

// Triangles returns the triangles of pose body textured with skin. The
// material of every triangle is the skin index.
func (m *Model) Triangles(body, skin int, kind mesh.GeometryKind) ([]mesh.Triangle, error) {
	if kind != mesh.KindStudio || body < 0 || body >= len(m.poses) || skin < 0 || skin >= len(m.skins) {
		return nil, errors.Wrapf(model.ErrBadSelection, "%s: body %d skin %d %v", m.name, body, skin, kind)
	}
	pose := m.poses[body]
	w := float32(m.skinWidth)
	h := float32(m.skinHeight)
	r := make([]mesh.Triangle, 0, len(m.tris))
	for _, t := range m.tris {
		var tri mesh.Triangle
		tri.Material = int32(skin)
		for i, vi := range t.Vertices {
			st := m.stverts[vi]
			s := float32(st.S)
			if t.FacesFront == 0 && st.Onseam != 0 {
				s += w / 2 // on back side
			}
			tri.Verts[i] = mesh.Vertex{
				Pos: m.position(pose[vi]),
				U:   (s + 0.5) / w,
				V:   (float32(st.T) + 0.5) / h,
			}
		}
		r = append(r, tri)
	}
	return r, nil
}

// IsMasked reports whether the skin has see through texels.
func (m *Model) IsMasked(ref int32) bool {
	return m.flags&FlagHoley != 0 && ref >= 0 && int(ref) < len(m.skins)
}

func wrap(f float32) float32 {
	return f - math32.Floor(f)
}

// SampleAlpha returns 0 for the transparent palette entry and 255 otherwise.
// u and v wrap like the texture does.
func (m *Model) SampleAlpha(ref int32, u, v float32) byte {
	if ref < 0 || int(ref) >= len(m.skins) {
		return 255
	}
	x := math.Clamp(0, int(wrap(u)*float32(m.skinWidth)), m.skinWidth-1)
	y := math.Clamp(0, int(wrap(v)*float32(m.skinHeight)), m.skinHeight-1)
	if m.skins[ref][y*m.skinWidth+x] == transparentIndex {
		return 0
	}
	return 255
}
