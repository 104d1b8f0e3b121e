// SPDX-License-Identifier: GPL-2.0-or-later

package meshfactory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lookups counts GetOrBuild results: memory, disk, built or error
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlmesh_factory_lookups_total",
		Help: "Mesh lookups by where the mesh came from",
	}, []string{"result"})

	// cacheFailures counts disk cache misses and write errors by reason
	cacheFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlmesh_cache_failures_total",
		Help: "Mesh cache files which could not be used or written",
	}, []string{"reason"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlmesh_build_duration_seconds",
		Help:    "Time spent building meshes from triangles",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
)
