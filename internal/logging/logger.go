package logging

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes log messages to a file
type Logger struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

// Global logger instance (accessed atomically for thread-safety)
var globalLogger atomic.Pointer[Logger]

// Init initializes the global logger with the specified file path.
// If path is empty, logging is disabled. Debug messages are kept only when verbose is set.
func Init(path string, verbose bool) error {
	if path == "" {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	// The file is set before the logger is published so Close always sees it
	logger := newLogger(zapcore.AddSync(file), level)
	logger.file = file
	install(logger)

	Info("=== vidctl log started ===")
	return nil
}

// Use installs a logger writing console-encoded lines to w.
// Tests use it to capture output without touching the filesystem.
func Use(w zapcore.WriteSyncer, level zapcore.Level) {
	install(newLogger(w, level))
}

func newLogger(w zapcore.WriteSyncer, level zapcore.Level) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), w, level)
	return &Logger{sugar: zap.New(core).Sugar()}
}

// install publishes logger and closes the one it replaces
func install(logger *Logger) {
	if old := globalLogger.Swap(logger); old != nil {
		old.close()
	}
}

// Close flushes and closes the global logger
func Close() {
	if logger := globalLogger.Swap(nil); logger != nil {
		logger.close()
	}
}

func (l *Logger) close() {
	_ = l.sugar.Sync()
	if l.file != nil {
		l.file.Close()
	}
}

// Info logs an info message
func Info(format string, args ...any) {
	if logger := globalLogger.Load(); logger != nil {
		logger.sugar.Infof(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...any) {
	if logger := globalLogger.Load(); logger != nil {
		logger.sugar.Errorf(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...any) {
	if logger := globalLogger.Load(); logger != nil {
		logger.sugar.Warnf(format, args...)
	}
}

// Debug logs a debug message
func Debug(format string, args ...any) {
	if logger := globalLogger.Load(); logger != nil {
		logger.sugar.Debugf(format, args...)
	}
}

// With logs an info message with structured key/value pairs
func With(msg string, keysAndValues ...any) {
	if logger := globalLogger.Load(); logger != nil {
		logger.sugar.Infow(msg, keysAndValues...)
	}
}

// IsEnabled returns true if logging is enabled
func IsEnabled() bool {
	return globalLogger.Load() != nil
}
