// Package logging builds the file-backed zap logger. The terminal belongs to
// the TUI, so nothing is written to stdout or stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Defaults for the rotating log file.
const (
	DefaultLevel      = "info"
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 2
	defaultMaxAgeDays = 14
)

// Options configures the log file.
type Options struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = DefaultLevel
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// New returns a JSON logger writing to a rotating file.
func New(opts Options) (*zap.Logger, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("log path is empty")
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeMB
	}
	maxBackups := opts.MaxBackups
	if maxBackups < 0 {
		maxBackups = DefaultMaxBackups
	}
	writer := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	}
	return newLogger(level, zapcore.AddSync(writer)), nil
}

// NewWriter returns a JSON logger writing to w.
func NewWriter(level zapcore.Level, w io.Writer) *zap.Logger {
	return newLogger(level, zapcore.AddSync(w))
}

func newLogger(level zapcore.Level, ws zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), ws, level)
	return zap.New(core, zap.AddCaller())
}
