package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey struct{}

var loggerKey contextKey

// ParseLevel maps a config level string to a zap level. Unknown values map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// New builds the structured logger. The returned AtomicLevel can be changed
// while the logger is in use.
func New(level, environment string) (*zap.Logger, zap.AtomicLevel, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Development mode for better readability during development
	if environment == "development" {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, err
	}
	return logger, config.Level, nil
}

// WithLogger stores a request-scoped logger in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// LogHTTPServerStart logs HTTP server startup
func LogHTTPServerStart(logger *zap.Logger, addr string) {
	logger.Info("http_server_start",
		zap.String("listen_addr", addr),
	)
}

// LogRateLimited logs rate limiting events
func LogRateLimited(ctx context.Context, route string) {
	FromContext(ctx).Warn("rate_limited",
		zap.String("route", route),
		zap.String("event", "rate_limited"),
	)
}

// ApplyConfigReload moves level to name after a config file change and logs
// the outcome. A rejected reload leaves level untouched.
func ApplyConfigReload(logger *zap.Logger, level zap.AtomicLevel, name string, err error) {
	if err != nil {
		logger.Warn("config_reload_rejected", zap.Error(err))
		return
	}
	level.SetLevel(ParseLevel(name))
	logger.Info("config_reloaded", zap.String("log_level", name))
}
