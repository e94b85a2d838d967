// Package log builds zap loggers for the node and provides field helpers.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder writes human-readable lines.
	ConsoleEncoder = "console"
	// JSONEncoder writes one json object per line.
	JSONEncoder = "json"
)

// Config for the node logger.
type Config struct {
	Level   string `mapstructure:"level"`
	Encoder string `mapstructure:"encoder"`
	// Modules overrides level for named loggers, e.g. "sync: debug".
	Modules map[string]string `mapstructure:"modules"`
}

// DefaultConfig returns info level console logging.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Encoder: ConsoleEncoder,
	}
}

// New creates a logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch cfg.Encoder {
	case JSONEncoder:
		enc = zapcore.NewJSONEncoder(encCfg)
	case ConsoleEncoder, "":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log encoder %q", cfg.Encoder)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(stderr), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}

// Named returns a child logger, applying the per-module level override if configured.
func Named(logger *zap.Logger, cfg Config, name string) *zap.Logger {
	child := logger.Named(name)
	lvl, exist := cfg.Modules[name]
	if !exist {
		return child
	}
	var level zapcore.Level
	if err := level.Set(lvl); err != nil {
		logger.Warn("invalid module log level", zap.String("module", name), zap.String("level", lvl))
		return child
	}
	return child.WithOptions(zap.IncreaseLevel(level))
}
