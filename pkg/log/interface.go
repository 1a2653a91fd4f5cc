// Package log provides a structured logging interface for creditscore.
//
// The interface is slog-shaped (message plus alternating key/value fields) so
// call sites do not depend on the backend. The default backend is zerolog; see
// zerolog.go. Tests swap in a TestLogger.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
//	logger.Info("Model trained",
//	    log.ModelNameKey, "RandomForestClassifier",
//	    log.SamplesKey, 700,
//	    log.FeaturesKey, 5,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	// Warnings indicate a problem the run can continue past, such as a chart
	// that could not be rendered.
	Warn(msg string, fields ...any)

	// Error logs an error-level message.
	// If the first field is an error value it is attached as the error of the
	// entry, together with its stack trace when one was recorded.
	//
	//   logger.Error("Pipeline failed", err, log.StageKey, "load")
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
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

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers created afterwards.
	SetLevel(level Level)
}
