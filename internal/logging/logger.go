package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kyleking/ae-columns/internal/config"
)

const (
	logDirPerm  = 0755
	logFilePerm = 0644
)

// Logger provides structured logging on top of slog
type Logger struct {
	slog *slog.Logger
	file *os.File
}

var (
	globalLogger *Logger
	loggerMu     sync.RWMutex
	loggerOnce   sync.Once
)

// InitializeLogger initializes the global logger with the given configuration
func InitializeLogger(cfg config.LoggingConfig) error {
	var err error

	loggerOnce.Do(func() {
		var logger *Logger

		logger, err = NewLogger(cfg)
		if err == nil {
			setGlobal(logger)
		}
	})

	return err
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	logger := &Logger{}

	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, errors.New("log file path is required when output is 'file'")
		}

		path := config.ExpandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), logDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logger.file = file
		output = file
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger.slog = slog.New(newHandler(output, cfg.Format, cfg.Level, cfg.AddSource))

	return logger, nil
}

// NewWriterLogger builds a logger writing to w, mostly for tests and the HTTP layer
func NewWriterLogger(w io.Writer, format, level string) *Logger {
	return &Logger{slog: slog.New(newHandler(w, format, level, false))}
}

func newHandler(w io.Writer, format, level string, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: addSource,
	}

	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a config level string to an slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying slog.Logger
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{slog: l.slog.With(key, value), file: l.file}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.slog.Debug(message) }
func (l *Logger) Info(message string) { l.slog.Info(message) }
func (l *Logger) Warn(message string) { l.slog.Warn(message) }
func (l *Logger) Error(message string) { l.slog.Error(message) }

func (l *Logger) Debugf(format string, args ...any) {
	if l.slog.Enabled(context.Background(), slog.LevelDebug) {
		l.slog.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Infof(format string, args ...any) { l.slog.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any) { l.slog.Warn(fmt.Sprintf(format, args...)) }

func (l *Logger) Errorf(format string, args ...any) {
	l.slog.Error(fmt.Sprintf(format, args...))
}

// ErrorWithErr logs an error message with an associated error
func (l *Logger) ErrorWithErr(message string, err error) {
	l.slog.Error(message, "error", err)
}

// Close closes the logger and any associated resources
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}

	return nil
}

func setGlobal(l *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	globalLogger = l
}

// GetLogger returns the global logger, falling back to a stderr logger when uninitialized
func GetLogger() *Logger {
	loggerMu.RLock()
	l := globalLogger
	loggerMu.RUnlock()

	if l == nil {
		SetupFallbackLogger()
		return GetLogger()
	}

	return l
}

// SetLogger replaces the global logger
func SetLogger(l *Logger) {
	setGlobal(l)
}

// SetupFallbackLogger sets up a basic logger for cases where configuration fails
func SetupFallbackLogger() {
	setGlobal(NewWriterLogger(os.Stderr, "text", "info"))
}

// Global logging functions that use the global logger

func Debug(message string) { GetLogger().Debug(message) }
func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }
func Info(message string) { GetLogger().Info(message) }
func Infof(format string, args ...any) { GetLogger().Infof(format, args...) }
func Warn(message string) { GetLogger().Warn(message) }
func Warnf(format string, args ...any) { GetLogger().Warnf(format, args...) }
func Error(message string) { GetLogger().Error(message) }
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }
func ErrorWithErr(message string, err error) { GetLogger().ErrorWithErr(message, err) }

// WithField adds a field to the global logger context
func WithField(key string, value any) *Logger {
	return GetLogger().WithField(key, value)
}

// WithFields adds multiple fields to the global logger context
func WithFields(fields map[string]any) *Logger {
	return GetLogger().WithFields(fields)
}

// WithError adds an error to the global logger context
func WithError(err error) *Logger {
	return GetLogger().WithError(err)
}

// LoggerMiddleware wraps fn with start/finish logging for the named operation
func LoggerMiddleware(operation string, fn func() error) error {
	logger := WithField("operation", operation)
	logger.Debug("Starting operation")

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		logger.WithField("duration", duration).ErrorWithErr("Operation failed", err)
	} else {
		logger.WithField("duration", duration).Debug("Operation completed successfully")
	}

	return err
}
