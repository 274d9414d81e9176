package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses string to zapcore.Level
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is an alias for zap.Field for interface compatibility
type Field = zap.Field

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithBackend(backend string) Logger
	WithFields(fields ...Field) Logger
	Sync() error
}

type zapLogger struct {
	logger *zap.Logger
}

// New creates a new logger with zap. Format "json" selects the production
// encoder; anything else the development encoder with RFC3339 timestamps.
func New(level zapcore.Level, format string) Logger {
	var config zap.Config

	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	config.Level = zap.NewAtomicLevelAt(level)
	// stdout belongs to command output
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return &zapLogger{logger: logger}
}

// NewFromConfig creates a logger from string configuration
func NewFromConfig(level, format string) Logger {
	return New(ParseLevel(level), format)
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

// NewWithCore wraps an existing zap core, mostly for tests that observe output.
func NewWithCore(core zapcore.Core) Logger {
	return &zapLogger{logger: zap.New(core)}
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fields...)
}

// WithBackend returns a new logger tagged with the storage backend name
func (l *zapLogger) WithBackend(backend string) Logger {
	return l.WithFields(zap.String("backend", backend))
}

// WithFields returns a new logger with additional fields
func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

func String(key, value string) Field {
	return zap.String(key, value)
}

func Int(key string, value int) Field {
	return zap.Int(key, value)
}

func Uint32(key string, value uint32) Field {
	return zap.Uint32(key, value)
}

func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

func Error(err error) Field {
	return zap.Error(err)
}

var defaultLogger Logger = NewFromConfig("info", "text")

// SetDefault sets the default logger
func SetDefault(l Logger) {
	defaultLogger = l
}

// GetDefault returns the default logger instance
func GetDefault() Logger {
	return defaultLogger
}
