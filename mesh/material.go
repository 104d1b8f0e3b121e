// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

// MaterialLookup is supplied by whoever owns the textures of a model.
// Material references are the values passed to Builder.AddTriangle.
type MaterialLookup interface {
	// IsMasked reports alpha tested materials.
	IsMasked(ref int32) bool
	// SampleAlpha returns the alpha at texture coordinate u, v in [0,1].
	SampleAlpha(ref int32, u, v float32) byte
}
