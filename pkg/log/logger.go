// Package log provides the logging facility used across researchrag.
//
// It defines a small Logger interface so that library users can plug in
// their own logger, and ships a default implementation backed by
// kataras/golog.
package log

import (
	"io"

	"github.com/kataras/golog"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo for general informational messages.
	LevelInfo
	// LevelWarn for warning messages.
	LevelWarn
	// LevelError for error messages.
	LevelError
	// LevelNone disables all logging.
	LevelNone
)

// Logger is the logging interface used by all researchrag packages.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// GologLogger implements Logger using kataras/golog.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger creates a logger backed by a fresh golog instance at the
// given level.
func NewGologLogger(level Level) *GologLogger {
	l := golog.New()
	l.SetLevel(gologLevel(level))
	return &GologLogger{logger: l}
}

// NewGologLoggerWithOutput creates a logger writing to the given output.
func NewGologLoggerWithOutput(out io.Writer, level Level) *GologLogger {
	l := golog.New()
	l.SetOutput(out)
	l.SetLevel(gologLevel(level))
	return &GologLogger{logger: l}
}

// SetLevel changes the logger's level.
func (l *GologLogger) SetLevel(level Level) {
	l.logger.SetLevel(gologLevel(level))
}

// Debugf logs a debug message.
func (l *GologLogger) Debugf(format string, v ...any) { l.logger.Debugf(format, v...) }

// Infof logs an informational message.
func (l *GologLogger) Infof(format string, v ...any) { l.logger.Infof(format, v...) }

// Warnf logs a warning message.
func (l *GologLogger) Warnf(format string, v ...any) { l.logger.Warnf(format, v...) }

// Errorf logs an error message.
func (l *GologLogger) Errorf(format string, v ...any) { l.logger.Errorf(format, v...) }

func gologLevel(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelNone:
		return "disable"
	default:
		return "info"
	}
}

// NopLogger is a Logger that discards everything.
type NopLogger struct{}

// Debugf does nothing.
func (NopLogger) Debugf(format string, v ...any) {}

// Infof does nothing.
func (NopLogger) Infof(format string, v ...any) {}

// Warnf does nothing.
func (NopLogger) Warnf(format string, v ...any) {}

// Errorf does nothing.
func (NopLogger) Errorf(format string, v ...any) {}

// defaultLogger is the package-level logger. Info level by default.
var defaultLogger Logger = NewGologLogger(LevelInfo)

// SetDefault replaces the package-level logger.
//
// This lets applications route researchrag's logging into their own setup
// without threading logger objects through every constructor.
func SetDefault(logger Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// Default returns the current package-level logger.
func Default() Logger {
	return defaultLogger
}

// SetLevel installs a fresh default golog logger at the given level.
func SetLevel(level Level) {
	defaultLogger = NewGologLogger(level)
}

// Debugf logs a debug message using the package-level logger.
func Debugf(format string, v ...any) { defaultLogger.Debugf(format, v...) }

// Infof logs an informational message using the package-level logger.
func Infof(format string, v ...any) { defaultLogger.Infof(format, v...) }

// Warnf logs a warning message using the package-level logger.
func Warnf(format string, v ...any) { defaultLogger.Warnf(format, v...) }

// Errorf logs an error message using the package-level logger.
func Errorf(format string, v ...any) { defaultLogger.Errorf(format, v...) }
