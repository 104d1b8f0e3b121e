// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"hlmesh/filesystem"
)

var (
	loadersMu sync.RWMutex
	loaders   map[uint32]LoadFunc
)

func init() {
	loaders = make(map[uint32]LoadFunc)
}

// LoadFunc parses a model file. file is positioned at the start.
type LoadFunc func(name string, file filesystem.File, modTime time.Time) (Model, error)

// Register makes Load use f for files starting with magic.
func Register(magic uint32, f LoadFunc) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[magic] = f
}

// Load reads the named model from the game filesystem. The loader is picked
// by the first four bytes of the file.
func Load(name string) (Model, error) {
	fi, err := filesystem.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNoSuchModel, name)
		}
		return nil, err
	}
	file, err := filesystem.Open(name)
	if err != nil {
		return nil, errors.Wrap(ErrNoSuchModel, name)
	}
	defer file.Close()

	var magic uint32
	err = binary.Read(file, binary.LittleEndian, &magic)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}

	loadersMu.RLock()
	f, ok := loaders[magic]
	loadersMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFormat, "file %s", name)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f(name, file, fi.ModTime())
}

// Files resolves models through the game filesystem.
type Files struct{}

func (Files) ModTime(name string) (time.Time, error) {
	t, err := filesystem.ModTime(name)
	if err != nil && os.IsNotExist(err) {
		return time.Time{}, errors.Wrap(ErrNoSuchModel, name)
	}
	return t, err
}

func (Files) Load(name string) (Model, error) {
	return Load(name)
}
