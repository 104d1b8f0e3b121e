// SPDX-License-Identifier: GPL-2.0-or-later

// Package model is the boundary to the code owning model geometry. Meshes are
// built from the triangles a Model hands out for one body and skin.
package model

import (
	"time"

	"github.com/pkg/errors"

	"hlmesh/mesh"
)

var (
	ErrUnknownFormat = errors.New("unknown model format")
	ErrNoSuchModel   = errors.New("no such model")
	// ErrBadSelection is returned for a body, skin or kind the model lacks.
	ErrBadSelection = errors.New("body, skin or kind not available")
)

type Model interface {
	Name() string
	// ModTime is the modification time of the source data. A newer time
	// invalidates built meshes.
	ModTime() time.Time
	Triangles(body, skin int, kind mesh.GeometryKind) ([]mesh.Triangle, error)
}

// Resolver finds models by name.
type Resolver interface {
	// ModTime must be cheap, it is called on every mesh lookup.
	ModTime(name string) (time.Time, error)
	Load(name string) (Model, error)
}
