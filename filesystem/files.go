// SPDX-License-Identifier: GPL-2.0-or-later

// Package filesystem resolves game files. The game directory is layered over
// the base game directory and pak archives shadow loose files of the same
// directory.
package filesystem

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/tools/godoc/vfs"

	"hlmesh/pack"
)

const (
	// BaseGame is the directory below the base dir every mod builds upon.
	BaseGame = "valve"
	// cacheDirName is used below the game dir if no cache dir was set.
	cacheDirName = "meshcache"
)

var (
	baseDir  string
	gameDir  string
	cacheDir string
	gameNS   = vfs.NameSpace{}
	packs    []*pack.Pack
	mutex    sync.RWMutex
)

type File interface {
	io.ReadSeekCloser
	io.ReaderAt
}

type packFileSystem struct {
	p *pack.Pack
}

type closer struct {
	*io.SectionReader
}

func (*closer) Close() error {
	return nil
}

type fileInfo struct {
	name    string // base name of the file
	size    int64
	modTime time.Time
	dir     bool
}

func (f *fileInfo) Name() string {
	return f.name
}
func (f *fileInfo) Size() int64 {
	return f.size
}
func (f *fileInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
func (f *fileInfo) ModTime() time.Time {
	return f.modTime
}
func (f *fileInfo) IsDir() bool {
	return f.dir
}
func (f *fileInfo) Sys() any {
	return nil
}

func (p packFileSystem) Open(name string) (vfs.ReadSeekCloser, error) {
	// inside a pack file there is no 'root'. all files are relative to '.'
	name = strings.TrimPrefix(name, "/")
	f, err := p.p.Open(name)
	if err != nil {
		return nil, err
	}
	return &closer{f}, nil
}

func (p packFileSystem) Stat(name string) (os.FileInfo, error) {
	name = strings.TrimPrefix(name, "/")
	if s, ok := p.p.Size(name); ok {
		return &fileInfo{
			name:    path.Base(name),
			size:    s,
			modTime: p.p.ModTime(),
		}, nil
	}
	if len(p.readDir(name)) != 0 {
		return &fileInfo{name: path.Base(name), modTime: p.p.ModTime(), dir: true}, nil
	}
	return nil, os.ErrNotExist
}

func (p packFileSystem) Lstat(name string) (os.FileInfo, error) {
	return p.Stat(name)
}

// readDir lists the entries directly below dir. Pak files only know file
// names, directories are implied by the paths.
func (p packFileSystem) readDir(dir string) []os.FileInfo {
	dir = strings.Trim(dir, "/")
	prefix := ""
	if dir != "" && dir != "." {
		prefix = dir + "/"
	}
	seen := make(map[string]bool)
	var r []os.FileInfo
	for _, n := range p.p.Names() {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		rest := n[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			sub := rest[:i]
			if !seen[sub] {
				seen[sub] = true
				r = append(r, &fileInfo{name: sub, modTime: p.p.ModTime(), dir: true})
			}
			continue
		}
		s, _ := p.p.Size(n)
		r = append(r, &fileInfo{name: rest, size: s, modTime: p.p.ModTime()})
	}
	return r
}

func (p packFileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	r := p.readDir(name)
	if len(r) == 0 {
		return nil, os.ErrNotExist
	}
	return r, nil
}

func (p packFileSystem) RootType(string) vfs.RootType {
	return ""
}

func (p packFileSystem) String() string {
	return p.p.String()
}

func GameDir() string {
	mutex.RLock()
	defer mutex.RUnlock()
	return gameDir
}

func BaseDir() string {
	mutex.RLock()
	defer mutex.RUnlock()
	return baseDir
}

// CacheDir is where built meshes get stored.
func CacheDir() string {
	mutex.RLock()
	defer mutex.RUnlock()
	if cacheDir != "" {
		return cacheDir
	}
	if gameDir == "" {
		return ""
	}
	return filepath.Join(gameDir, cacheDirName)
}

// UseCacheDir overrides the cache dir, an empty dir restores the default.
func UseCacheDir(dir string) {
	mutex.Lock()
	defer mutex.Unlock()
	cacheDir = dir
}

func UseBaseDir(dir string) {
	mutex.Lock()
	defer mutex.Unlock()
	baseDir = dir
	closePacks()
	root := filepath.Join(baseDir, BaseGame)
	gameDir = root
	gameNS = vfs.NameSpace{}
	gameNS.Bind("/", vfs.OS(root), "/", vfs.BindReplace)
	useDir(gameNS, root)
}

func UseGameDir(dir string) {
	mutex.Lock()
	defer mutex.Unlock()
	closePacks()
	gameNS = vfs.NameSpace{}
	root := filepath.Join(baseDir, BaseGame)
	gameNS.Bind("/", vfs.OS(root), "/", vfs.BindReplace)
	useDir(gameNS, root)
	gameDir = filepath.Join(baseDir, dir)
	if gameDir == root {
		return
	}
	gameNS.Bind("/", vfs.OS(gameDir), "/", vfs.BindBefore)
	useDir(gameNS, gameDir)
}

func closePacks() {
	for _, p := range packs {
		p.Close()
	}
	packs = nil
}

func useDir(ns vfs.NameSpace, dir string) {
	// pak[i].pak files go to the front, a higher number shadows a lower one
	for i := 0; ; i++ {
		pfn := fmt.Sprintf("pak%d.pak", i)
		pfp := filepath.Join(dir, pfn)
		p, err := pack.NewPackReader(pfp)
		if err != nil {
			break
		}
		packs = append(packs, p)
		ns.Bind("/", packFileSystem{p}, "/", vfs.BindBefore)
	}
}

func Stat(name string) (os.FileInfo, error) {
	mutex.RLock()
	defer mutex.RUnlock()
	return gameNS.Stat(path.Join("/", name))
}

// ModTime returns the modification time of the file which Open would use.
func ModTime(name string) (time.Time, error) {
	fi, err := Stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func Open(name string) (File, error) {
	mutex.RLock()
	defer mutex.RUnlock()
	nf, err := gameNS.Open(path.Join("/", name))
	if err != nil {
		return nil, err
	}
	f, ok := nf.(File)
	if !ok {
		nf.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

func ReadFile(name string) ([]byte, error) {
	file, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// ReadDir merges the listings of all layers, the first layer wins on
// duplicate names.
func ReadDir(name string) ([]os.FileInfo, error) {
	mutex.RLock()
	defer mutex.RUnlock()
	return gameNS.ReadDir(path.Join("/", name))
}

// WriteFileAtomic writes data next to name and renames it into place, so
// readers see either the old or the new content.
func WriteFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	tmp := filepath.Join(dir, "."+filepath.Base(name)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming to %s", name)
	}
	return nil
}

func isSep(c uint8) bool {
	return c == '/' || c == '\\'
}

func Ext(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func StripExt(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
