// Package logging - zap logger construction.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the configuration for the logger.
type Config struct {
	// One of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	// Colored console output instead of JSON.
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns info level JSON logging.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// ParseLevel converts a level name into a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return l, errors.Wrapf(err, "invalid log level %q", level)
	}
	return l, nil
}

// NewLoggerConfig returns the zap config for cfg.
//
// Stacktraces are disabled and durations are rendered as strings in both modes.
func NewLoggerConfig(cfg Config) (zap.Config, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	return zc, nil
}

// New builds a sugared logger named name.
//
// Arguments:
//   - name: The logger name.
//   - cfg: Level and encoding.
//
// Returns:
//   - *zap.SugaredLogger: The logger.
//   - error: Error if the level is unknown or the logger cannot be built.
func New(name string, cfg Config) (*zap.SugaredLogger, error) {
	zc, err := NewLoggerConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.Named(name).Sugar(), nil
}
