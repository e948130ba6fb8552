package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "gamekeys-be"

var log *zap.Logger

// newConfig picks the encoder for env. LOG_LEVEL, when set and parseable,
// overrides the default level.
func newConfig(env string) zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if lvl, err := zap.ParseAtomicLevel(raw); err == nil {
			cfg.Level = lvl
		}
	}
	return cfg
}

// Init replaces the global logger. A config that fails to build falls back
// to zap's example logger rather than leaving the process without one.
func Init(env string) {
	built, err := newConfig(env).Build(zap.AddCaller())
	if err != nil {
		built = zap.NewExample()
		built.Warn("logger config rejected, using fallback", zap.Error(err))
	}
	log = built.With(zap.String("service", serviceName), zap.String("env", env))
}

// Replace swaps the global logger and returns a func restoring the old one.
func Replace(l *zap.Logger) func() {
	prev := log
	log = l
	return func() { log = prev }
}

func L() *zap.Logger {
	if log == nil {
		Init(os.Getenv("APP_ENV"))
	}
	return log
}

func Sync() {
	if log == nil {
		return
	}
	_ = log.Sync()
}
