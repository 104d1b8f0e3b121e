// SPDX-License-Identifier: GPL-2.0-or-later

package cvars

import (
	"hlmesh/conlog"
	"hlmesh/cvar"
)

var (
	Developer         *cvar.Cvar
	MeshAlphaTest     *cvar.Cvar
	MeshAreaTree      *cvar.Cvar
	MeshCache         *cvar.Cvar
	MeshMaxFacetPlane *cvar.Cvar
	MeshMaxPlanes     *cvar.Cvar
)

func init() {
	Developer = cvar.MustRegister("developer", "0", cvar.NONE)
	Developer.SetCallback(func(cv *cvar.Cvar) {
		conlog.SetDeveloper(cv.Bool())
	})
	// 0 makes all masked materials solid for every trace
	MeshAlphaTest = cvar.MustRegister("mesh_alphatest", "1", cvar.ARCHIVE)
	MeshAreaTree = cvar.MustRegister("mesh_areatree", "1", cvar.ARCHIVE)
	MeshCache = cvar.MustRegister("mesh_cache", "1", cvar.ARCHIVE)
	MeshMaxFacetPlane = cvar.MustRegister("mesh_maxfacetplanes", "32", cvar.NONE)
	MeshMaxPlanes = cvar.MustRegister("mesh_maxplanes", "262144", cvar.NONE)
}
