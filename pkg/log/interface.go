// Package log provides the structured logging interface used across claimrate.
//
// The Logger interface is slog-shaped (message plus key/value pairs) and is backed
// by zerolog. Components obtain a named logger once and attach model context:
//
//	logger := log.GetLoggerWithName("ensemble.gbdt").With(
//	    log.ModelNameKey, "GradientBoostingRegressor",
//	    log.EstimatorIDKey, id,
//	)
//	logger.Info("fit started", log.SamplesKey, rows, log.FeaturesKey, cols)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run.
	Warn(msg string, fields ...any)

	// Error logs an error condition. When the first field is an error value it is
	// recorded under ErrAttrKey together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a Logger that adds the given key/value pairs to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers; swapped out in tests.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
