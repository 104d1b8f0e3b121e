// SPDX-License-Identifier: GPL-2.0-or-later

// Package conlog is the console log. It is a thin layer over zap so the
// engine code can keep printf style messages next to structured ones.
package conlog

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu    sync.RWMutex
	log   = zap.NewNop()
	sugar = log.Sugar()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// FileConfig holds file logging configuration.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns default file logging settings.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Init sets up console and optional file output.
func Init(lvl string, fileCfg FileConfig, console bool) error {
	level.SetLevel(parseLevel(lvl))

	var cores []zapcore.Core
	if console {
		enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			LevelKey:         "level",
			MessageKey:       "msg",
			EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
			EncodeLevel:      zapcore.CapitalColorLevelEncoder,
			ConsoleSeparator: " ",
		})
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level))
	}
	if fileCfg.Path != "" {
		w := &lumberjack.Logger{
			Filename:   fileCfg.Path,
			MaxSize:    fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAge:     fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
			LocalTime:  true,
		}
		enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			LevelKey:         "level",
			MessageKey:       "msg",
			CallerKey:        "caller",
			EncodeTime:       zapcore.ISO8601TimeEncoder,
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeCaller:     zapcore.ShortCallerEncoder,
			ConsoleSeparator: " ",
		})
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), level))
	}
	SetLogger(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

func parseLevel(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger replaces the backing logger. Tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
	sugar = l.Sugar()
}

// SetDeveloper toggles debug output, it is hooked to the developer cvar.
func SetDeveloper(on bool) {
	if on {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

func logger() (*zap.Logger, *zap.SugaredLogger) {
	mu.RLock()
	defer mu.RUnlock()
	return log, sugar
}

// Sync flushes any buffered log entries.
func Sync() {
	l, _ := logger()
	_ = l.Sync()
}

func trim(format string) string {
	return strings.TrimRight(format, "\n")
}

func Printf(format string, v ...interface{}) {
	_, s := logger()
	s.Infof(trim(format), v...)
}

// DPrintf only shows up with developer set.
func DPrintf(format string, v ...interface{}) {
	_, s := logger()
	s.Debugf(trim(format), v...)
}

func Warnf(format string, v ...interface{}) {
	_, s := logger()
	s.Warnf(trim(format), v...)
}

func Debug(msg string, fields ...zap.Field) {
	l, _ := logger()
	l.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	l, _ := logger()
	l.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	l, _ := logger()
	l.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	l, _ := logger()
	l.Error(msg, fields...)
}
