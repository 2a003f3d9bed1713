// Package logging defines a minimal structured-logging interface used across
// the project. Implementations wrap slog, zap and logrus.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "cache hit", "partition", name, "key", key)
type Logger interface {
	// Debug logs diagnostic details (cache decisions, queue transitions).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported backends for New.
const (
	FormatSlog   = "slog"
	FormatZap    = "zap"
	FormatLogrus = "logrus"
)

// New builds a Logger writing JSON to stdout using the requested backend.
// The slog backend redacts credential attributes.
// Level is one of debug, info, warn, error (case-insensitive); empty means info.
func New(format, level string) (Logger, error) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = "info"
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatSlog:
		return newSlogJSON(os.Stdout, lvl)

	case FormatZap:
		zl, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("zap level %q: %w", level, err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zl)
		l, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}
		return NewZapLogger(l), nil

	case FormatLogrus:
		ll, err := logrus.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("logrus level %q: %w", level, err)
		}
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(ll)
		return NewLogrusLogger(logrus.NewEntry(l)), nil
	}

	return nil, fmt.Errorf("unknown log format %q", format)
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) Logger                  { return n }
