// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"hlmesh/commandline"
	"hlmesh/conlog"
	"hlmesh/cvar"
	"hlmesh/cvars"
	"hlmesh/filesystem"
)

const fileName = "meshbake.yaml"

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	path := commandline.ConfigFile()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyFlags(cfg)
	return cfg, nil
}

// findConfigFile looks for a config in the working and the user config dir.
func findConfigFile() string {
	candidates := []string{fileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "hlmesh", fileName))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFile merges the YAML file at path into cfg. Settings missing from the
// file keep their value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// SaveTo writes cfg as YAML.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return filesystem.WriteFileAtomic(path, data)
}

// applyFlags applies command line overrides to the config.
func applyFlags(cfg *Config) {
	if d := commandline.BaseDirectory(); d != "" {
		cfg.Game.BaseDir = d
	}
	if g := commandline.Game(); g != "" {
		cfg.Game.Mod = g
	}
	if d := commandline.CacheDirectory(); d != "" {
		cfg.Cache.Dir = d
	}
	if !commandline.Cache() {
		cfg.Cache.Enabled = false
	}
	if !commandline.AreaTree() {
		cfg.Mesh.AreaTree = false
	}
	if commandline.ConsoleDebug() {
		cfg.Logging.Level = "debug"
	}
	if f := commandline.LogFile(); f != "" {
		cfg.Logging.File = f
	}
	if commandline.Developer() {
		cfg.setCvar("developer", strconv.Itoa(commandline.DeveloperLevel()))
	}
	for _, s := range commandline.CvarSettings() {
		cfg.setCvar(s[0], s[1])
	}
}

func (c *Config) setCvar(name, value string) {
	if c.Cvars == nil {
		c.Cvars = make(map[string]string)
	}
	c.Cvars[name] = value
}

// Apply makes cfg the running configuration: logging first, then the game
// filesystem, then the cvars.
func Apply(cfg *Config) error {
	if err := conlog.Init(cfg.Logging.Level, cfg.Logging.fileConfig(), cfg.Logging.Console); err != nil {
		return errors.Wrap(err, "logging")
	}

	if _, err := os.Stat(filepath.Join(cfg.Game.BaseDir, filesystem.BaseGame)); err != nil {
		return errors.Wrapf(err, "base dir %s", cfg.Game.BaseDir)
	}
	filesystem.UseBaseDir(cfg.Game.BaseDir)
	if cfg.Game.Mod != "" {
		filesystem.UseGameDir(cfg.Game.Mod)
	}
	filesystem.UseCacheDir(cfg.Cache.Dir)

	cfg.Mesh.apply()
	cvars.MeshCache.SetByString(boolString(cfg.Cache.Enabled))
	names := make([]string, 0, len(cfg.Cvars))
	for n := range cfg.Cvars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		cvar.Set(n, cfg.Cvars[n])
	}
	return nil
}
