// SPDX-License-Identifier: GPL-2.0-or-later

// meshbake builds the collision meshes of models and stores them in the mesh
// cache.
//
//	meshbake [flags] models/scientist.mdl models/barney.mdl ...
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hlmesh/commandline"
	"hlmesh/config"
	"hlmesh/conlog"
	"hlmesh/mesh"
	"hlmesh/meshfactory"
	"hlmesh/model"
)

import (
	// register the model loaders
	_ "hlmesh/bsp"
	_ "hlmesh/mdl"
)

type job struct {
	name string
	body int
	skin int
}

// skinCounter is implemented by models with more than one skin.
type skinCounter interface {
	NumSkins() int
}

func jobs(names []string) ([]job, error) {
	var r []job
	for _, n := range names {
		if !commandline.AllSkins() {
			r = append(r, job{n, commandline.Body(), commandline.Skin()})
			continue
		}
		m, err := model.Files{}.Load(n)
		if err != nil {
			return nil, err
		}
		skins := 1
		if sc, ok := m.(skinCounter); ok {
			skins = sc.NumSkins()
		}
		for s := 0; s < skins; s++ {
			r = append(r, job{n, commandline.Body(), s})
		}
	}
	return r, nil
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Apply(cfg); err != nil {
		return err
	}
	defer conlog.Sync()

	kind, err := mesh.ParseGeometryKind(commandline.Kind())
	if err != nil {
		return err
	}
	if addr := commandline.MetricsAddress(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				conlog.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	todo, err := jobs(flag.Args())
	if err != nil {
		return err
	}
	factory := meshfactory.Default()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(commandline.Jobs())
	for _, j := range todo {
		j := j
		g.Go(func() error {
			m, err := factory.GetOrBuild(ctx, j.name, j.body, j.skin, kind)
			if err != nil {
				return errors.Wrapf(err, "%s body %d skin %d", j.name, j.body, j.skin)
			}
			conlog.Printf("%v: %d facets, %d planes, %d nodes\n",
				m.Ident, len(m.Facets), len(m.Planes), len(m.Nodes))
			return nil
		})
	}
	return g.Wait()
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] model...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx); err != nil {
		conlog.Error("meshbake failed", zap.Error(err))
		conlog.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
