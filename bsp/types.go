// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

const (
	// VersionQuake is the version of Quake maps
	VersionQuake = 29
	// VersionHalfLife is the version of Half-Life maps, the same lumps with
	// textures carrying their own palette
	VersionHalfLife = 30
)

// called lump_t in c
type directory struct {
	Offset int32
	Size   int32
}

type header struct {
	Version      int32
	Entities     directory
	Planes       directory
	Textures     directory
	Vertexes     directory
	Visibility   directory
	Nodes        directory
	Texinfo      directory
	Faces        directory
	Lighting     directory
	ClipNodes    directory
	Leafs        directory
	MarkSurfaces directory
	Edges        directory
	SurfaceEdges directory // SURFEDGES
	Models       directory
}

// Model, either the world or a brush entity inside of it
type bspModel struct {
	BoundingBox  [6]float32
	Origin       [3]float32
	HeadNode     [4]int32
	VisLeafCount int32 // not including the solid leaf 0
	FirstFace    int32
	FaceCount    int32
}

type vertex struct {
	X float32
	Y float32
	Z float32
}

// the first edge of the list is never used
type edge struct {
	Vertex0 uint16 // id of start vertex, must be in [0,numvertices[
	Vertex1 uint16 // id of end vertex, must be in [0,numvertices[
}

type surface struct {
	VectorS   [3]float32 // S vector, horizontal in texture space
	DistS     float32    // horizontal offset in texture space
	VectorT   [3]float32 // T vector, vertical in texture space
	DistT     float32    // vertical offset in texture space
	TextureID uint32     // Index of mip texture, must be in [0,numtex[
	Animated  uint32     // 0 for ordinary textures, 1 for water
}

type face struct {
	PlaneID        int16 // The plane in which the face lies, must be in [0,numplanes[
	Side           int16
	ListEdgeID     int32
	ListEdgeNumber int16
	TexInfoID      int16
	LightStyle     [4]uint8
	LightMap       int32 // Pointer inside the general light map, or -1. this defines the start of the face light map
}

type mipTexture struct {
	Name   [16]byte
	Width  uint32
	Height uint32
	// Offset[0] to Pix[width * height]
	// 1: to Pix[width/2 * height/2]
	// 2: to Pix[width/4 * height/4]
	// 3: to Pix[width/8 * height/8]
	// All 0 for textures stored in a wad.
	Offset [4]uint32
}
