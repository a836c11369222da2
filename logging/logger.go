// Package logging provides structured logging for the OpenFSW ground
// harness and simulated flight core.
//
// It wraps go.uber.org/zap for structured, leveled logging and integrates
// with context.Context for job- and subsystem-scoped logging, the way a
// flight event stream is tagged with the subsystem that raised it.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ctxKey is the context key for the logger.
type ctxKey struct{}

var (
	// defaultLogger is the global logger instance.
	defaultLogger *zap.SugaredLogger
	// loggerMu protects defaultLogger.
	loggerMu sync.RWMutex
)

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	defaultLogger = l.Sugar()
}

// Config holds the logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level zapcore.Level
	// Format is the output encoding ("console" or "json").
	Format string
	// Development enables human-friendly console output and stack traces
	// on warn-and-above, matching zap's development preset.
	Development bool
	// Output is the log output destination. Defaults to stderr.
	Output io.Writer
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(cfg Config) *zap.SugaredLogger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(cfg.Output)), cfg.Level)
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	return zap.New(core, opts...).Sugar()
}

// SetDefault sets the default global logger.
func SetDefault(logger *zap.SugaredLogger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// Default returns the default global logger.
func Default() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// WithSubsystem returns a logger tagged with the originating subsystem.
func WithSubsystem(logger *zap.SugaredLogger, subsystem string) *zap.SugaredLogger {
	return logger.With("subsystem", subsystem)
}

// WithMode returns a logger tagged with the current operating mode.
func WithMode(logger *zap.SugaredLogger, mode string) *zap.SugaredLogger {
	return logger.With("mode", mode)
}

// WithOperation returns a logger tagged with the operation name.
func WithOperation(logger *zap.SugaredLogger, op string) *zap.SugaredLogger {
	return logger.With("operation", op)
}

// WithAPID returns a logger tagged with a CCSDS application process ID.
func WithAPID(logger *zap.SugaredLogger, apid uint16) *zap.SugaredLogger {
	return logger.With("apid", apid)
}

// ContextWithLogger returns a new context with the logger attached.
func ContextWithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves the logger from context.
// If no logger is found, returns the default logger.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return Default()
}

// ParseLevel parses a log level string and returns the corresponding
// zapcore.Level. Returns zapcore.InfoLevel for invalid values.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Helper functions for common log patterns, mirroring the default logger.

// Info logs an info message using the default logger.
func Info(msg string, keysAndValues ...any) {
	Default().Infow(msg, keysAndValues...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, keysAndValues ...any) {
	Default().Warnw(msg, keysAndValues...)
}

// Error logs an error message using the default logger.
func Error(msg string, keysAndValues ...any) {
	Default().Errorw(msg, keysAndValues...)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, keysAndValues ...any) {
	Default().Debugw(msg, keysAndValues...)
}

// InfoContext logs an info message using the logger from context.
func InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

// WarnContext logs a warning message using the logger from context.
func WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

// ErrorContext logs an error message using the logger from context.
func ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// DebugContext logs a debug message using the logger from context.
func DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}
