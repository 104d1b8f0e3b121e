// SPDX-License-Identifier: GPL-2.0-or-later

package mesh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	degenerateTriangles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlmesh_degenerate_triangles_total",
		Help: "Triangles skipped because they have no area",
	})

	planeOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlmesh_facet_plane_overflow_total",
		Help: "Facets which needed more planes than allowed",
	})

	meshBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlmesh_mesh_builds_total",
		Help: "Meshes built from triangles",
	})
)
