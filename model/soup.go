// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"hlmesh/mesh"
)

// Soup is a model made of triangles already in memory. It has a single
// body and skin.
type Soup struct {
	ModelName string
	Modified  time.Time
	Kind      mesh.GeometryKind
	Tris      []mesh.Triangle
}

func (s *Soup) Name() string {
	return s.ModelName
}

func (s *Soup) ModTime() time.Time {
	return s.Modified
}

func (s *Soup) Triangles(body, skin int, kind mesh.GeometryKind) ([]mesh.Triangle, error) {
	if body != 0 || skin != 0 || kind != s.Kind {
		return nil, errors.Wrapf(ErrBadSelection, "%s: body %d skin %d %v", s.ModelName, body, skin, kind)
	}
	return s.Tris, nil
}

// Collection is a Resolver over models held in memory.
type Collection struct {
	mu     sync.RWMutex
	models map[string]Model
}

// Put adds or replaces a model.
func (c *Collection) Put(m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models == nil {
		c.models = make(map[string]Model)
	}
	c.models[m.Name()] = m
}

func (c *Collection) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.models, name)
}

func (c *Collection) Load(name string) (Model, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	if !ok {
		return nil, errors.Wrap(ErrNoSuchModel, name)
	}
	return m, nil
}

func (c *Collection) ModTime(name string) (time.Time, error) {
	m, err := c.Load(name)
	if err != nil {
		return time.Time{}, err
	}
	return m.ModTime(), nil
}
