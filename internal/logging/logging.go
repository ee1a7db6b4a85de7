// Package logging builds the zap loggers used by the credx command line.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. Format is "console" for a
// human-readable colored output or "json" for one JSON object per line.
func New(level, format string) (*zap.Logger, error) {
	return NewWithWriter(level, format, zapcore.Lock(os.Stderr))
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, format string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "message",

			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalColorLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,

			NameKey: "logger",

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		})
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeDuration = zapcore.MillisDurationEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	core := zapcore.NewCore(encoder, w, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel maps debug, info, warn and error to zap levels. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
