// SPDX-License-Identifier: GPL-2.0-or-later

// Package meshcache stores built meshes on disk.
//
// A cache file is only used when it was written for the same identity, which
// includes the modification time of the source model. Files that fail any
// check are rejected as a whole, the caller rebuilds the mesh.
package meshcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"hlmesh/crc"
	"hlmesh/filesystem"
	"hlmesh/math/vec"
	"hlmesh/mesh"
)

var (
	ErrNotFound = errors.New("mesh cache file not found")
	ErrCorrupt  = errors.New("mesh cache file corrupt")
	// ErrStale is returned for files of another version or identity.
	ErrStale = errors.New("mesh cache file stale")
)

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", ".", "_")

// Path returns the cache file of id below dir.
func Path(dir string, id mesh.Identity) string {
	n := fmt.Sprintf("%s_b%d_s%d_%v%s", nameReplacer.Replace(id.Model), id.Body, id.Skin, id.Kind, Ext)
	return filepath.Join(dir, n)
}

func writeIdentity(w io.Writer, id mesh.Identity) {
	binary.Write(w, binary.LittleEndian, uint16(len(id.Model)))
	io.WriteString(w, id.Model)
	binary.Write(w, binary.LittleEndian, identTail{
		Body:    id.Body,
		Skin:    id.Skin,
		Kind:    uint8(id.Kind),
		ModTime: id.ModTime.UnixNano(),
	})
}

func encodePayload(m *mesh.Mesh) []byte {
	var b bytes.Buffer
	w := func(v interface{}) {
		// writes to a bytes.Buffer do not fail
		binary.Write(&b, binary.LittleEndian, v)
	}

	w(uint32(len(m.Planes)))
	for _, p := range m.Planes {
		w(diskPlane{
			Normal:   p.Normal,
			Dist:     p.Dist,
			Type:     p.Type,
			SignBits: p.SignBits,
		})
	}

	w(uint32(len(m.Facets)))
	for i := range m.Facets {
		f := &m.Facets[i]
		df := diskFacet{
			Material:  f.Material,
			NumPlanes: f.NumPlanes,
		}
		for j, v := range f.Verts {
			df.Verts[j] = diskVertex{Pos: v.Pos, U: v.U, V: v.V}
		}
		w(df)
		w(m.FacetPlanes(i))
	}

	w(uint32(len(m.Nodes)))
	for _, n := range m.Nodes {
		w(diskNode{
			Axis:      n.Axis,
			Dist:      n.Dist,
			Children:  n.Children,
			NumFacets: n.NumFacets,
		})
		for _, fi := range m.FacetRefs[n.FirstFacet : n.FirstFacet+n.NumFacets] {
			w(uint32(fi))
		}
	}
	return b.Bytes()
}

// Save writes m to path. The file is replaced atomically.
func Save(m *mesh.Mesh, path string) error {
	if len(m.Ident.Model) > 0xffff {
		return errors.Errorf("model name of %d bytes too long", len(m.Ident.Model))
	}
	payload := encodePayload(m)

	var b bytes.Buffer
	b.Grow(len(m.Ident.Model) + len(payload) + 48)
	binary.Write(&b, binary.LittleEndian, fileHeader{Magic: magic, Version: cacheVersion})
	var identCRC crc.Digest
	writeIdentity(io.MultiWriter(&b, &identCRC), m.Ident)
	binary.Write(&b, binary.LittleEndian, identCRC.Sum16())
	binary.Write(&b, binary.LittleEndian, payloadHeader{
		Length: uint32(len(payload)),
		CRC:    crc.Update(payload),
	})
	b.Write(payload)

	if err := filesystem.WriteFileAtomic(path, b.Bytes()); err != nil {
		return errors.Wrapf(err, "saving %v", m.Ident)
	}
	return nil
}

func corrupt(path string, format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorrupt, "%s: "+format, append([]interface{}{path}, args...)...)
}

// Load reads the mesh stored at path. It fails unless the file is intact and
// was written for want.
func Load(path string, want mesh.Identity) (*mesh.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, path)
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	r := bytes.NewReader(data)

	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, corrupt(path, "header: %v", err)
	}
	if h.Magic != magic {
		return nil, corrupt(path, "bad magic %q", h.Magic[:])
	}
	if h.Version != cacheVersion {
		return nil, errors.Wrapf(ErrStale, "%s: version %d, want %d", path, h.Version, cacheVersion)
	}

	identStart := len(data) - r.Len()
	id, err := readIdentity(r)
	if err != nil {
		return nil, corrupt(path, "identity: %v", err)
	}
	identBytes := data[identStart : len(data)-r.Len()]
	var identCRC uint16
	if err := binary.Read(r, binary.LittleEndian, &identCRC); err != nil {
		return nil, corrupt(path, "identity crc: %v", err)
	}
	if crc.Update(identBytes) != identCRC {
		return nil, corrupt(path, "identity crc mismatch")
	}
	if !id.Same(want) {
		return nil, errors.Wrapf(ErrStale, "%s: built for %v at %v", path, id, id.ModTime)
	}

	var ph payloadHeader
	if err := binary.Read(r, binary.LittleEndian, &ph); err != nil {
		return nil, corrupt(path, "payload header: %v", err)
	}
	if int64(ph.Length) != int64(r.Len()) {
		return nil, corrupt(path, "payload of %d bytes, %d present", ph.Length, r.Len())
	}
	payload := data[len(data)-r.Len():]
	if crc.Update(payload) != ph.CRC {
		return nil, corrupt(path, "payload crc mismatch")
	}

	m, err := decodePayload(bytes.NewReader(payload))
	if err != nil {
		return nil, corrupt(path, "%v", err)
	}
	m.Ident = want
	m.SetBounds()
	return m, nil
}

func readIdentity(r *bytes.Reader) (mesh.Identity, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return mesh.Identity{}, err
	}
	if int(n) > r.Len() {
		return mesh.Identity{}, io.ErrUnexpectedEOF
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return mesh.Identity{}, err
	}
	var t identTail
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return mesh.Identity{}, err
	}
	return mesh.Identity{
		Model:   string(name),
		Body:    t.Body,
		Skin:    t.Skin,
		Kind:    mesh.GeometryKind(t.Kind),
		ModTime: time.Unix(0, t.ModTime),
	}, nil
}

func finite(v ...float32) bool {
	for _, f := range v {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// readCount reads a record count and checks that count records of size
// bytes can still be present.
func readCount(r *bytes.Reader, size int) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, err
	}
	if int64(n)*int64(size) > int64(r.Len()) {
		return 0, errors.Errorf("%d records do not fit into %d bytes", n, r.Len())
	}
	return int(n), nil
}

func decodePayload(r *bytes.Reader) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}

	n, err := readCount(r, diskPlaneSize)
	if err != nil {
		return nil, errors.Wrap(err, "planes")
	}
	m.Planes = make([]mesh.Plane, n)
	for i := range m.Planes {
		var dp diskPlane
		if err := binary.Read(r, binary.LittleEndian, &dp); err != nil {
			return nil, errors.Wrapf(err, "plane %d", i)
		}
		normal := vec.Vec3(dp.Normal)
		if !finite(dp.Normal[0], dp.Normal[1], dp.Normal[2], dp.Dist) {
			return nil, errors.Errorf("plane %d not finite", i)
		}
		p := mesh.NewPlane(normal, dp.Dist)
		if p.Type != dp.Type || p.SignBits != dp.SignBits {
			return nil, errors.Errorf("plane %d misclassified", i)
		}
		m.Planes[i] = p
	}

	n, err = readCount(r, diskFacetSize)
	if err != nil {
		return nil, errors.Wrap(err, "facets")
	}
	m.Facets = make([]mesh.Facet, n)
	m.PlaneRefs = make([]uint32, 0, n*8)
	for i := range m.Facets {
		var df diskFacet
		if err := binary.Read(r, binary.LittleEndian, &df); err != nil {
			return nil, errors.Wrapf(err, "facet %d", i)
		}
		if df.NumPlanes > mesh.MaxFacetPlanes {
			return nil, errors.Errorf("facet %d has %d planes", i, df.NumPlanes)
		}
		var v [3]mesh.Vertex
		for j, dv := range df.Verts {
			if !finite(dv.Pos[0], dv.Pos[1], dv.Pos[2], dv.U, dv.V) {
				return nil, errors.Errorf("facet %d not finite", i)
			}
			v[j] = mesh.Vertex{Pos: dv.Pos, U: dv.U, V: dv.V}
		}
		refs := make([]uint32, df.NumPlanes)
		if err := binary.Read(r, binary.LittleEndian, refs); err != nil {
			return nil, errors.Wrapf(err, "facet %d planes", i)
		}
		for _, pi := range refs {
			if int(pi) >= len(m.Planes) {
				return nil, errors.Errorf("facet %d uses plane %d of %d", i, pi, len(m.Planes))
			}
		}
		m.Facets[i] = mesh.NewFacet(v, df.Material, uint32(len(m.PlaneRefs)), df.NumPlanes)
		m.PlaneRefs = append(m.PlaneRefs, refs...)
	}

	n, err = readCount(r, diskNodeSize)
	if err != nil {
		return nil, errors.Wrap(err, "nodes")
	}
	m.Nodes = make([]mesh.AreaNode, n)
	if n > 0 {
		m.FacetRefs = make([]int32, 0, len(m.Facets))
	}
	for i := range m.Nodes {
		var dn diskNode
		if err := binary.Read(r, binary.LittleEndian, &dn); err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		if err := checkNode(i, &dn, n); err != nil {
			return nil, err
		}
		if int64(dn.NumFacets)*4 > int64(r.Len()) {
			return nil, errors.Errorf("node %d: %d facets do not fit", i, dn.NumFacets)
		}
		refs := make([]uint32, dn.NumFacets)
		if err := binary.Read(r, binary.LittleEndian, refs); err != nil {
			return nil, errors.Wrapf(err, "node %d facets", i)
		}
		m.Nodes[i] = mesh.AreaNode{
			Axis:       dn.Axis,
			Dist:       dn.Dist,
			Children:   dn.Children,
			FirstFacet: uint32(len(m.FacetRefs)),
			NumFacets:  dn.NumFacets,
		}
		for _, fi := range refs {
			if int(fi) >= len(m.Facets) {
				return nil, errors.Errorf("node %d uses facet %d of %d", i, fi, len(m.Facets))
			}
			m.FacetRefs = append(m.FacetRefs, int32(fi))
		}
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes", r.Len())
	}
	if n > 0 && !allLinked(m) {
		return nil, errors.New("facets missing from the area tree")
	}
	return m, nil
}

// checkNode makes sure children come after their parent, so walking the tree
// always ends.
func checkNode(i int, dn *diskNode, count int) error {
	if !finite(dn.Dist) {
		return errors.Errorf("node %d not finite", i)
	}
	switch dn.Axis {
	case -1:
		if dn.Children != [2]int32{-1, -1} {
			return errors.Errorf("leaf %d has children", i)
		}
	case 0, 1, 2:
		for _, c := range dn.Children {
			if int(c) <= i || int(c) >= count {
				return errors.Errorf("node %d has child %d", i, c)
			}
		}
	default:
		return errors.Errorf("node %d has axis %d", i, dn.Axis)
	}
	return nil
}

func allLinked(m *mesh.Mesh) bool {
	seen := make([]bool, len(m.Facets))
	for _, fi := range m.FacetRefs {
		seen[fi] = true
	}
	for _, s := range seen {
		if !s {
			return false
		}
	}
	return true
}
