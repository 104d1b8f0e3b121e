// SPDX-License-Identifier: GPL-2.0-or-later

package meshcache

// On disk everything is little endian:
//
//	fileHeader
//	identity: name length uint16, name, identTail
//	identity crc uint16
//	payloadHeader
//	payload: planes, facets, nodes, each a uint32 count and the records
//
// Facets are followed by their plane indices, nodes by their facet indices,
// both as uint32.

const (
	cacheVersion = 1
	Ext          = ".hlmc"
)

var magic = [4]byte{'H', 'L', 'M', 'C'}

type fileHeader struct {
	Magic   [4]byte
	Version uint32
}

type identTail struct {
	Body    int32
	Skin    int32
	Kind    uint8
	ModTime int64 // unix nanoseconds
}

type payloadHeader struct {
	Length uint32
	CRC    uint16
}

type diskPlane struct {
	Normal   [3]float32
	Dist     float32
	Type     uint8
	SignBits uint8
}

type diskVertex struct {
	Pos  [3]float32
	U, V float32
}

type diskFacet struct {
	Verts     [3]diskVertex
	Material  int32
	NumPlanes uint16
}

type diskNode struct {
	Axis      int8
	Dist      float32
	Children  [2]int32
	NumFacets uint32
}

// record sizes, used to reject counts larger than the remaining payload
const (
	diskPlaneSize = 4*4 + 2
	diskFacetSize = 3*5*4 + 4 + 2
	diskNodeSize  = 1 + 4 + 2*4 + 4
)
