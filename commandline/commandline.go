// SPDX-License-Identifier: GPL-2.0-or-later

// Package commandline holds the flags of meshbake. They override the values
// of the config file.
package commandline

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

var (
	conDebug bool
	noCache  bool
	noTree   bool

	developer = boolInt{false, 1}
	settings  cvarSettings

	body    int
	skin    int
	jobs    int
	allSkin bool

	basedir    string
	game       string
	cachedir   string
	configFile string
	logFile    string
	kind       string
	metrics    string
)

type boolInt struct {
	set bool
	num int
}

func (b *boolInt) IsBoolFlag() bool {
	// We can not support both "-flag" and "-flag 10"
	// This allows "-flag", and "-flag=10"
	// and also "-flag=true" and "-flag=false"
	// but not "-flag 10"
	return true
}

func (b *boolInt) Set(s string) error {
	v, err := strconv.ParseInt(s, 0, strconv.IntSize)
	if err != nil {
		v, err := strconv.ParseBool(s)
		b.set = v
		return err
	}
	b.set = true
	b.num = int(v)
	return nil
}

func (b *boolInt) String() string {
	return fmt.Sprintf("Set: %v, Num: %v", b.set, b.num)
}

// cvarSettings collects repeated "-set name=value" flags in order.
type cvarSettings [][2]string

func (c *cvarSettings) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	*c = append(*c, [2]string{name, value})
	return nil
}

func (c *cvarSettings) String() string {
	var b strings.Builder
	for i, s := range *c {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[0] + "=" + s[1])
	}
	return b.String()
}

func init() {
	register(flag.CommandLine)
}

func register(fs *flag.FlagSet) {
	fs.BoolVar(&conDebug, "condebug", false, "log debug messages")
	fs.BoolVar(&noCache, "nocache", false, "neither read nor write the mesh cache")
	fs.BoolVar(&noTree, "notree", false, "build meshes without area tree")
	fs.BoolVar(&allSkin, "allskins", false, "bake every skin of the model")

	fs.Var(&developer, "developer", "enable developer messages, optional level")
	fs.Var(&settings, "set", "set a cvar, name=value, may be repeated")

	fs.IntVar(&body, "body", 0, "body to bake")
	fs.IntVar(&skin, "skin", 0, "skin to bake")
	fs.IntVar(&jobs, "j", 4, "meshes baked in parallel")

	fs.StringVar(&basedir, "basedir", "", "directory holding the game dirs")
	fs.StringVar(&game, "game", "", "mod directory below basedir")
	fs.StringVar(&cachedir, "cachedir", "", "mesh cache directory")
	fs.StringVar(&configFile, "config", "", "config file")
	fs.StringVar(&logFile, "logfile", "", "also log to this file")
	fs.StringVar(&kind, "kind", "studio", "geometry kind: studio, brush or cooked")
	fs.StringVar(&metrics, "metrics", "", "serve prometheus metrics on this address")
}

func BaseDirectory() string {
	return basedir
}

func Game() string {
	return game
}

func CacheDirectory() string {
	return cachedir
}

func ConfigFile() string {
	return configFile
}

func LogFile() string {
	return logFile
}

func Kind() string {
	return kind
}

func MetricsAddress() string {
	return metrics
}

func Body() int {
	return body
}

func Skin() int {
	return skin
}

func AllSkins() bool {
	return allSkin
}

func Jobs() int {
	if jobs < 1 {
		return 1
	}
	return jobs
}

func ConsoleDebug() bool {
	return conDebug
}

func Cache() bool {
	return !noCache
}

func AreaTree() bool {
	return !noTree
}

func Developer() bool {
	return developer.set
}

func DeveloperLevel() int {
	return developer.num
}

// CvarSettings returns the -set flags in command line order.
func CvarSettings() [][2]string {
	return settings
}
