// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the meshbake settings.
package config

import (
	"strconv"

	"hlmesh/conlog"
	"hlmesh/cvars"
)

// Config holds all settings.
type Config struct {
	Game    GameConfig        `yaml:"game"`
	Cache   CacheConfig       `yaml:"cache"`
	Mesh    MeshConfig        `yaml:"mesh"`
	Logging LoggingConfig     `yaml:"logging"`
	Cvars   map[string]string `yaml:"cvars"` // applied after all other settings
}

// GameConfig tells where the models are.
type GameConfig struct {
	BaseDir string `yaml:"basedir"`
	Mod     string `yaml:"mod"` // empty for the base game
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // defaults to meshcache below the game dir
}

// MeshConfig sets the build and trace cvars.
type MeshConfig struct {
	AreaTree       bool `yaml:"area_tree"`
	AlphaTest      bool `yaml:"alpha_test"`
	MaxFacetPlanes int  `yaml:"max_facet_planes"`
	MaxPlanes      int  `yaml:"max_planes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with the built in values of every setting.
func Default() *Config {
	file := conlog.DefaultFileConfig("")
	return &Config{
		Game: GameConfig{
			BaseDir: ".",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Mesh: MeshConfig{
			AreaTree:       true,
			AlphaTest:      true,
			MaxFacetPlanes: 32,
			MaxPlanes:      1 << 18,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}
}

func (l LoggingConfig) fileConfig() conlog.FileConfig {
	return conlog.FileConfig{
		Path:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

func boolString(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// apply sets the mesh cvars.
func (m MeshConfig) apply() {
	cvars.MeshAreaTree.SetByString(boolString(m.AreaTree))
	cvars.MeshAlphaTest.SetByString(boolString(m.AlphaTest))
	cvars.MeshMaxFacetPlane.SetByString(strconv.Itoa(m.MaxFacetPlanes))
	cvars.MeshMaxPlanes.SetByString(strconv.Itoa(m.MaxPlanes))
}
