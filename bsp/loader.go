// SPDX-License-Identifier: GPL-2.0-or-later

// Package bsp reads the brush models of maps as a triangle source for
// collision meshes.
package bsp

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"hlmesh/filesystem"
	"hlmesh/math"
	"hlmesh/math/vec"
	"hlmesh/mesh"
	"hlmesh/model"
)

var ErrInvalid = errors.New("invalid brush model")

const (
	// transparentIndex marks see-through pixels of '{' textures
	transparentIndex = 255
	maxTextureSize   = 1 << 12
)

func init() {
	model.Register(VersionQuake, Load)
	model.Register(VersionHalfLife, Load)
}

type Texture struct {
	Name   string
	Width  int
	Height int
	// Data holds the first mip level, it is nil for wad textures
	Data []byte
}

// Masked reports textures alpha tested with palette index 255.
func (t *Texture) Masked() bool {
	return strings.HasPrefix(t.Name, "{")
}

// Sky faces are not part of collision meshes.
func (t *Texture) sky() bool {
	return strings.HasPrefix(strings.ToLower(t.Name), "sky")
}

// Model holds the brush models of one map. Body selects the brush model,
// 0 is the world. There are no skins.
type Model struct {
	name    string
	modTime time.Time
	version int32

	vertexes  []vec.Vec3
	edges     []edge
	surfEdges []int32
	texInfos  []surface
	faces     []face
	models    []bspModel
	textures  []*Texture
}

func invalid(name, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, "%s: "+format, append([]interface{}{name}, args...)...)
}

// readLump decodes the records of lump d.
func readLump[T any](data []byte, d directory, name, lump string) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	if d.Offset < 0 || d.Size < 0 || int64(d.Offset)+int64(d.Size) > int64(len(data)) {
		return nil, invalid(name, "%s lump outside of file", lump)
	}
	if int(d.Size)%size != 0 {
		return nil, invalid(name, "funny %s lump size", lump)
	}
	r := make([]T, int(d.Size)/size)
	if err := binary.Read(bytes.NewReader(data[d.Offset:d.Offset+d.Size]), binary.LittleEndian, r); err != nil {
		return nil, invalid(name, "%s: %v", lump, err)
	}
	return r, nil
}

// Load parses a map. It matches model.LoadFunc.
func Load(name string, file filesystem.File, modTime time.Time) (model.Model, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	m, err := load(name, data, modTime)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func load(name string, data []byte, modTime time.Time) (*Model, error) {
	var h header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, invalid(name, "header: %v", err)
	}
	if h.Version != VersionQuake && h.Version != VersionHalfLife {
		return nil, invalid(name, "version %d", h.Version)
	}
	m := &Model{
		name:    name,
		modTime: modTime,
		version: h.Version,
	}
	verts, err := readLump[vertex](data, h.Vertexes, name, "vertex")
	if err != nil {
		return nil, err
	}
	m.vertexes = make([]vec.Vec3, len(verts))
	for i, v := range verts {
		m.vertexes[i] = vec.Vec3{v.X, v.Y, v.Z}
	}
	if m.edges, err = readLump[edge](data, h.Edges, name, "edge"); err != nil {
		return nil, err
	}
	if m.surfEdges, err = readLump[int32](data, h.SurfaceEdges, name, "surfedge"); err != nil {
		return nil, err
	}
	if m.texInfos, err = readLump[surface](data, h.Texinfo, name, "texinfo"); err != nil {
		return nil, err
	}
	if m.faces, err = readLump[face](data, h.Faces, name, "face"); err != nil {
		return nil, err
	}
	if m.models, err = readLump[bspModel](data, h.Models, name, "model"); err != nil {
		return nil, err
	}
	if len(m.models) == 0 {
		return nil, invalid(name, "no models")
	}
	if err := m.loadTextures(data, h.Textures); err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) loadTextures(data []byte, d directory) error {
	if d.Size == 0 {
		return nil
	}
	if d.Offset < 0 || d.Size < 4 || int64(d.Offset)+int64(d.Size) > int64(len(data)) {
		return invalid(m.name, "texture lump outside of file")
	}
	lump := data[d.Offset : d.Offset+d.Size]
	count := int(int32(binary.LittleEndian.Uint32(lump)))
	if count < 0 || 4+4*count > len(lump) {
		return invalid(m.name, "%d textures", count)
	}
	m.textures = make([]*Texture, count)
	for i := range m.textures {
		ofs := int32(binary.LittleEndian.Uint32(lump[4+4*i:]))
		if ofs == -1 {
			// missing texture, the faces keep an empty material
			m.textures[i] = &Texture{}
			continue
		}
		if ofs < 0 || int(ofs)+binary.Size(mipTexture{}) > len(lump) {
			return invalid(m.name, "texture %d outside of lump", i)
		}
		var mt mipTexture
		if err := binary.Read(bytes.NewReader(lump[ofs:]), binary.LittleEndian, &mt); err != nil {
			return invalid(m.name, "texture %d: %v", i, err)
		}
		if mt.Width == 0 || mt.Height == 0 || mt.Width > maxTextureSize || mt.Height > maxTextureSize {
			return invalid(m.name, "texture %d size %dx%d", i, mt.Width, mt.Height)
		}
		t := &Texture{
			Name:   string(mt.Name[:]),
			Width:  int(mt.Width),
			Height: int(mt.Height),
		}
		if n := strings.IndexByte(t.Name, 0); n >= 0 {
			t.Name = t.Name[:n]
		}
		if mt.Offset[0] != 0 {
			start := int64(ofs) + int64(mt.Offset[0])
			end := start + int64(t.Width*t.Height)
			if end > int64(len(lump)) {
				return invalid(m.name, "texture %s pixels outside of lump", t.Name)
			}
			t.Data = lump[start:end]
		}
		m.textures[i] = t
	}
	return nil
}

// validate checks every index used by Triangles.
func (m *Model) validate() error {
	for i, e := range m.edges {
		if int(e.Vertex0) >= len(m.vertexes) || int(e.Vertex1) >= len(m.vertexes) {
			return invalid(m.name, "edge %d has bad vertex", i)
		}
	}
	for i, se := range m.surfEdges {
		if se == -1<<31 || int(abs(se)) >= len(m.edges) {
			return invalid(m.name, "surfedge %d has bad edge %d", i, se)
		}
	}
	for i, f := range m.faces {
		if f.ListEdgeNumber < 3 || f.ListEdgeID < 0 ||
			int(f.ListEdgeID)+int(f.ListEdgeNumber) > len(m.surfEdges) {
			return invalid(m.name, "face %d has bad edges", i)
		}
		if f.TexInfoID < 0 || int(f.TexInfoID) >= len(m.texInfos) {
			return invalid(m.name, "face %d has bad texinfo", i)
		}
	}
	for i, mod := range m.models {
		if mod.FirstFace < 0 || mod.FaceCount < 0 ||
			int(mod.FirstFace)+int(mod.FaceCount) > len(m.faces) {
			return invalid(m.name, "model %d has bad faces", i)
		}
	}
	return nil
}

func abs(i int32) int32 {
	if i < 0 {
		return -i
	}
	return i
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) ModTime() time.Time {
	return m.modTime
}

func (m *Model) Version() int {
	return int(m.version)
}

// NumModels returns the number of brush models, the world included.
func (m *Model) NumModels() int {
	return len(m.models)
}

func (m *Model) Textures() []*Texture {
	return m.textures
}

func (m *Model) texture(ref int32) *Texture {
	if ref < 0 || int(ref) >= len(m.textures) {
		return nil
	}
	return m.textures[ref]
}

// faceVertex returns vertex i of the polygon of f.
func (m *Model) faceVertex(f *face, i int) vec.Vec3 {
	se := m.surfEdges[int(f.ListEdgeID)+i]
	if se >= 0 {
		return m.vertexes[m.edges[se].Vertex0]
	}
	return m.vertexes[m.edges[-se].Vertex1]
}

// Triangles fans the faces of brush model body. The material is the texture
// index, faces without a valid texture get -1.
func (m *Model) Triangles(body, skin int, kind mesh.GeometryKind) ([]mesh.Triangle, error) {
	if kind != mesh.KindBrush || skin != 0 || body < 0 || body >= len(m.models) {
		return nil, errors.Wrapf(model.ErrBadSelection, "%s: body %d skin %d %v", m.name, body, skin, kind)
	}
	mod := &m.models[body]
	var tris []mesh.Triangle
	for fi := mod.FirstFace; fi < mod.FirstFace+mod.FaceCount; fi++ {
		f := &m.faces[fi]
		ti := &m.texInfos[f.TexInfoID]
		mat := int32(ti.TextureID)
		tex := m.texture(mat)
		if tex == nil {
			mat = -1
		} else if tex.sky() {
			continue
		}
		vs := vec.Vec3(ti.VectorS)
		vt := vec.Vec3(ti.VectorT)
		vert := func(i int) mesh.Vertex {
			p := m.faceVertex(f, i)
			v := mesh.Vertex{Pos: p}
			if tex != nil && tex.Width > 0 {
				v.U = (vec.Dot(p, vs) + ti.DistS) / float32(tex.Width)
				v.V = (vec.Dot(p, vt) + ti.DistT) / float32(tex.Height)
			}
			return v
		}
		first := vert(0)
		prev := vert(1)
		for i := 2; i < int(f.ListEdgeNumber); i++ {
			cur := vert(i)
			tris = append(tris, mesh.Triangle{
				Verts:    [3]mesh.Vertex{first, prev, cur},
				Material: mat,
			})
			prev = cur
		}
	}
	return tris, nil
}

func (m *Model) IsMasked(ref int32) bool {
	t := m.texture(ref)
	return t != nil && t.Masked() && t.Data != nil
}

func wrap(f float32) float32 {
	return f - math32.Floor(f)
}

// SampleAlpha returns 0 for the transparent palette entry and 255 otherwise.
func (m *Model) SampleAlpha(ref int32, u, v float32) byte {
	t := m.texture(ref)
	if t == nil || t.Data == nil {
		return 255
	}
	x := math.Clamp(0, int(wrap(u)*float32(t.Width)), t.Width-1)
	y := math.Clamp(0, int(wrap(v)*float32(t.Height)), t.Height-1)
	if t.Data[y*t.Width+x] == transparentIndex {
		return 0
	}
	return 255
}
