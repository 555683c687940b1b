package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	// output is the writer set by InitLogWriter.
	output io.Writer = os.Stdout
	mu     sync.RWMutex
)

// ParseLogLevel converts a string log level to a slog.Level.
// Valid values are "debug", "info", "warn", "error".
// If an invalid value is provided, it defaults to info.
func ParseLogLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLog initializes or reinitializes the logger with the specified log level.
// It will override any previously configured logger instance.
func InitLog(logLevel string) {
	InitLogWriter(logLevel, os.Stdout)
}

// InitLogWriter initializes the logger to emit JSON lines to w.
func InitLogWriter(logLevel string, w io.Writer) {
	level.Set(ParseLogLevel(logLevel))

	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Tee sends log output to both the configured writer and w at the current
// level. The returned function restores the previous logger.
func Tee(w io.Writer) (restore func()) {
	mu.Lock()
	previous := logger
	logger = slog.New(slog.NewJSONHandler(io.MultiWriter(output, w), &slog.HandlerOptions{Level: level}))
	mu.Unlock()

	return func() {
		mu.Lock()
		logger = previous
		mu.Unlock()
	}
}

// GetLog returns the slog.Logger instance configured for the application.
// If the logger hasn't been initialized yet, it defaults to info level on stdout.
func GetLog() *slog.Logger {
	mu.RLock()
	if logger != nil {
		defer mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	}

	return logger
}

// Debug logs a message at Debug level.
func Debug(msg string, args ...any) { GetLog().Debug(msg, args...) }

// Info logs a message at Info level.
func Info(msg string, args ...any) { GetLog().Info(msg, args...) }

// Warn logs a message at Warn level.
func Warn(msg string, args ...any) { GetLog().Warn(msg, args...) }

// Error logs a message at Error level.
func Error(msg string, args ...any) { GetLog().Error(msg, args...) }

// Printf is a drop-in replacement for log.Printf using Debug as the log level.
func Printf(format string, args ...any) {
	GetLog().Debug(fmt.Sprintf(format, args...))
}

// Errorf logs the formatted message at Error level and returns it as an error.
// Supports %w like fmt.Errorf.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	Error(err.Error())
	return err
}
