// Package logging wraps go.uber.org/zap the way the teacher wraps its OTel
// providers in cmd/motel/main.go: a Setup constructor that returns a ready
// logger and a shutdown func, plus a With helper for building contextual
// child loggers per registry or per template binding.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger Setup constructs.
type Options struct {
	// Level is one of zap's level names: debug, info, warn, error.
	Level string
	// JSON selects zap's production JSON encoder; otherwise the console
	// encoder is used, matching the teacher's preference for human-readable
	// CLI output by default.
	JSON bool
}

// Logger is a thin wrapper over *zap.Logger carrying the sugared form
// alongside it, since cmd/forge wants Printf-style convenience while
// pkg/resolve and pkg/gen want structured fields.
type Logger struct {
	*zap.Logger
	Sugar *zap.SugaredLogger
}

// Setup builds a Logger per opts and returns a shutdown func that flushes
// buffered log entries; callers should defer the shutdown func exactly as
// cmd/motel/main.go defers its provider shutdowns.
func Setup(opts Options) (*Logger, func(), error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		if opts.Level == "" {
			level = zapcore.InfoLevel
		} else {
			return nil, nil, fmt.Errorf("logging: invalid level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if !opts.JSON {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("logging: building zap logger: %w", err)
	}

	l := &Logger{Logger: zl, Sugar: zl.Sugar()}
	shutdown := func() { _ = zl.Sync() }
	return l, shutdown, nil
}

// With returns a child Logger with the given structured fields attached,
// used to correlate diagnostics back to a specific registry or binding
// (e.g. With(zap.String("registry", path))).
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{Logger: child, Sugar: child.Sugar()}
}
