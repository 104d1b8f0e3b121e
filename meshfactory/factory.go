// SPDX-License-Identifier: GPL-2.0-or-later

// Package meshfactory hands out collision meshes. Each mesh is built at most
// once per source state, from the disk cache if possible.
package meshfactory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"hlmesh/conlog"
	"hlmesh/cvars"
	"hlmesh/filesystem"
	"hlmesh/mesh"
	"hlmesh/meshcache"
	"hlmesh/model"
)

// cancelInterval is the number of triangles added between context checks.
const cancelInterval = 1024

type Options struct {
	// Models resolves model names. The game filesystem is used if nil.
	Models model.Resolver
	// CacheDir overrides filesystem.CacheDir. Without any cache dir meshes
	// are not stored on disk.
	CacheDir string
}

type key struct {
	name string
	body int32
	skin int32
	kind mesh.GeometryKind
}

func (k key) String() string {
	return fmt.Sprintf("%s/%d/%d/%v", k.name, k.body, k.skin, k.kind)
}

type Factory struct {
	opts   Options
	models model.Resolver

	mu      sync.RWMutex
	meshes  map[key]*mesh.Mesh
	group   singleflight.Group
	flights map[string]*flight
}

// flight is a shared build. Its context is detached from the caller which
// started it and is cancelled once no caller waits for it any longer.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// result is what a flight hands to its waiters.
type result struct {
	m    *mesh.Mesh
	from string
}

func New(opts Options) *Factory {
	f := &Factory{
		opts:    opts,
		models:  opts.Models,
		meshes:  make(map[key]*mesh.Mesh),
		flights: make(map[string]*flight),
	}
	if f.models == nil {
		f.models = model.Files{}
	}
	return f
}

var (
	defaultOnce    sync.Once
	defaultFactory *Factory
)

// Default returns the process wide factory working on the game filesystem.
func Default() *Factory {
	defaultOnce.Do(func() {
		defaultFactory = New(Options{})
	})
	return defaultFactory
}

// lookup returns the mesh for k if it was built from a source not older than
// modTime. Outdated meshes are dropped.
func (f *Factory) lookup(k key, modTime time.Time) *mesh.Mesh {
	f.mu.RLock()
	m, ok := f.meshes[k]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	if !modTime.After(m.Ident.ModTime) {
		return m
	}
	f.mu.Lock()
	if f.meshes[k] == m {
		delete(f.meshes, k)
	}
	f.mu.Unlock()
	conlog.Debug("mesh source changed", zap.Stringer("key", k))
	return nil
}

func (f *Factory) store(k key, m *mesh.Mesh) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meshes[k] = m
}

// join registers the caller as waiter of the named flight.
func (f *Factory) join(ctx context.Context, name string) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flights[name]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel}
		f.flights[name] = fl
	}
	fl.waiters++
	return fl
}

// leave drops the caller from the flight. The last one cancels it.
func (f *Factory) leave(name string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.flights[name] == fl {
		delete(f.flights, name)
	}
}

// GetOrBuild returns the mesh of the model. Concurrent calls for the same
// key share one build. A caller whose ctx ends stops waiting; the build is
// cancelled only when every caller waiting for it has gone.
func (f *Factory) GetOrBuild(ctx context.Context, name string, body, skin int, kind mesh.GeometryKind) (*mesh.Mesh, error) {
	modTime, err := f.models.ModTime(name)
	if err != nil {
		lookups.WithLabelValues("error").Inc()
		return nil, err
	}
	k := key{name: name, body: int32(body), skin: int32(skin), kind: kind}
	for {
		if m := f.lookup(k, modTime); m != nil {
			lookups.WithLabelValues("memory").Inc()
			return m, nil
		}
		res, err := f.wait(ctx, k, modTime)
		if err == nil {
			lookups.WithLabelValues(res.from).Inc()
			return res.m, nil
		}
		// A flight abandoned by all its earlier callers fails with their
		// cancellation. Start over as long as ctx is live.
		if ctx.Err() == nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			continue
		}
		lookups.WithLabelValues("error").Inc()
		return nil, err
	}
}

// wait joins or starts the flight building k and waits for it or for ctx.
func (f *Factory) wait(ctx context.Context, k key, modTime time.Time) (result, error) {
	name := fmt.Sprintf("%v@%d", k, modTime.UnixNano())
	fl := f.join(ctx, name)
	defer f.leave(name, fl)
	ch := f.group.DoChan(name, func() (interface{}, error) {
		if m := f.lookup(k, modTime); m != nil {
			return result{m: m, from: "memory"}, nil
		}
		return f.load(fl.ctx, k, modTime)
	})
	select {
	case <-ctx.Done():
		return result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return result{}, r.Err
		}
		return r.Val.(result), nil
	}
}

func (f *Factory) cacheDir() string {
	if f.opts.CacheDir != "" {
		return f.opts.CacheDir
	}
	return filesystem.CacheDir()
}

func (f *Factory) load(ctx context.Context, k key, modTime time.Time) (result, error) {
	ctx, span := otel.Tracer("hlmesh").Start(ctx, "meshfactory.Factory.load",
		trace.WithAttributes(
			attribute.String("model", k.name),
			attribute.Int("body", int(k.body)),
			attribute.Int("skin", int(k.skin)),
			attribute.String("kind", k.kind.String()),
		))
	defer span.End()

	id := mesh.Identity{
		Model:   k.name,
		Body:    k.body,
		Skin:    k.skin,
		Kind:    k.kind,
		ModTime: modTime,
	}
	path := ""
	if dir := f.cacheDir(); dir != "" && cvars.MeshCache.Bool() {
		path = meshcache.Path(dir, id)
		m, err := meshcache.Load(path, id)
		if err == nil {
			f.store(k, m)
			span.SetAttributes(attribute.Bool("cache_hit", true))
			span.SetStatus(codes.Ok, "cache hit")
			return result{m: m, from: "disk"}, nil
		}
		cacheMiss(id, err)
	}

	m, err := f.build(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return result{}, err
	}
	if path != "" {
		if err := meshcache.Save(m, path); err != nil {
			cacheFailures.WithLabelValues("write").Inc()
			conlog.Warn("could not write mesh cache", zap.Stringer("mesh", id), zap.Error(err))
		}
	}
	f.store(k, m)
	span.SetAttributes(
		attribute.Int("facets", len(m.Facets)),
		attribute.Int("planes", len(m.Planes)))
	span.SetStatus(codes.Ok, "built")
	return result{m: m, from: "built"}, nil
}

// cacheMiss logs why a cache file was not used. Missing and stale files are
// expected, broken ones are worth a warning.
func cacheMiss(id mesh.Identity, err error) {
	switch {
	case errors.Is(err, meshcache.ErrNotFound):
		cacheFailures.WithLabelValues("missing").Inc()
		conlog.Debug("no cached mesh", zap.Stringer("mesh", id))
	case errors.Is(err, meshcache.ErrStale):
		cacheFailures.WithLabelValues("stale").Inc()
		conlog.Debug("cached mesh is stale", zap.Stringer("mesh", id), zap.Error(err))
	case errors.Is(err, meshcache.ErrCorrupt):
		cacheFailures.WithLabelValues("corrupt").Inc()
		conlog.Warn("cached mesh is corrupt, rebuilding", zap.Stringer("mesh", id), zap.Error(err))
	default:
		cacheFailures.WithLabelValues("read").Inc()
		conlog.Warn("could not read cached mesh", zap.Stringer("mesh", id), zap.Error(err))
	}
}

func buildOptions() mesh.BuildOptions {
	opts := mesh.DefaultBuildOptions()
	opts.BuildTree = cvars.MeshAreaTree.Bool()
	opts.MaxFacetPlanes = cvars.MeshMaxFacetPlane.Int()
	if n := cvars.MeshMaxPlanes.Int(); n > 0 {
		opts.MaxPlanes = n
	}
	return opts
}

func (f *Factory) build(ctx context.Context, id mesh.Identity) (*mesh.Mesh, error) {
	src, err := f.models.Load(id.Model)
	if err != nil {
		return nil, err
	}
	tris, err := src.Triangles(int(id.Body), int(id.Skin), id.Kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	opts := buildOptions()
	opts.MaxTriangles = len(tris)
	opts.Progress = func(done, total int) {
		conlog.Debug("building mesh",
			zap.Stringer("mesh", id),
			zap.Int("done", done),
			zap.Int("total", total))
	}
	b := mesh.NewBuilder(id, opts)
	for i := range tris {
		if i%cancelInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := b.AddTriangle(tris[i].Verts, tris[i].Material); err != nil {
			return nil, err
		}
	}
	m, err := b.Finish()
	if err != nil {
		return nil, err
	}
	d := time.Since(start)
	buildDuration.Observe(d.Seconds())
	conlog.Info("mesh built",
		zap.Stringer("mesh", id),
		zap.Int("facets", len(m.Facets)),
		zap.Int("degenerate", m.Stats.Degenerate),
		zap.Duration("took", d))
	return m, nil
}

// Evict drops all meshes of the named model from memory.
func (f *Factory) Evict(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.meshes {
		if k.name == name {
			delete(f.meshes, k)
		}
	}
}

// Flush drops all meshes from memory.
func (f *Factory) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meshes = make(map[key]*mesh.Mesh)
}

func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.meshes)
}

// Tracer returns a tracer for meshes textured by materials which follows
// the mesh_alphatest setting.
func Tracer(materials mesh.MaterialLookup) *mesh.Tracer {
	return &mesh.Tracer{
		Materials:  materials,
		ForceSolid: !cvars.MeshAlphaTest.Bool(),
	}
}
