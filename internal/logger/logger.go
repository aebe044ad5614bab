package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global is the shared logger instance used throughout the application.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// defaultLevel is the minimum log level for messages to be processed.
	//nolint:gochecknoglobals //  If the logging level is not set, the application will have no logs.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

const (
	// logDirPermissions is used when the log file directory does not exist yet.
	logDirPermissions = 0o755
	// logFilePermissions restricts the log file to its owner.
	logFilePermissions = 0o600
)

func init() { //nolint:gochecknoinits // If the logging level is not set, the application will have no logs.
	SetLogger(New(defaultLevel))
}

// New creates a *zap.SugaredLogger writing console lines to the terminal.
// Messages at error level and above go to stderr, everything else to stdout.
// Each extra sink receives every enabled message as a JSON line.
// If the logging level is not provided, the default level will be used.
func New(level zapcore.LevelEnabler, sinks ...zapcore.WriteSyncer) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	belowError := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return level.Enabled(l) && l < zapcore.ErrorLevel
	})

	fromError := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return level.Enabled(l) && l >= zapcore.ErrorLevel
	})

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalColorLevelEncoder))

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), belowError),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), fromError),
	}

	if len(sinks) > 0 {
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig(zapcore.CapitalLevelEncoder))
		for _, sink := range sinks {
			cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.Lock(sink), level))
		}
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

// AttachFile makes the global logger also append JSON lines to path.
// The returned function restores the terminal-only logger and closes the file.
func AttachFile(path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), logDirPermissions); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	previous := global
	SetLogger(New(defaultLevel, file))

	return func() error {
		_ = global.Sync()

		SetLogger(previous)

		return file.Close()
	}, nil
}

// encoderConfig returns the shared key layout with the given level encoder.
func encoderConfig(encodeLevel zapcore.LevelEncoder) zapcore.EncoderConfig {
	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	}
}

// ParseLogLevel converts a settings or flag value to a zap level.
// Only the levels an operator would pick are accepted.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Level returns the current logging level of the global logger.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger sets the global logger.
// This function is not thread-safe.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel sets the log level for the global logger.
func SetLevel(level zapcore.Level) {
	//nolint: errcheck // No need to check the error here.
	defer global.Sync()

	defaultLevel.SetLevel(level)
}

// Debug writes a debug level message using the logger from the context.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// Debugf writes a formatted debug level message using the logger from the context.
func Debugf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Debugf(format, args...)
}

// DebugKV writes a message and key-value pairs
// at the debug level using the logger from the context.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info writes an information level message using the logger from the context.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// Infof writes a formatted information level message using the logger from the context.
func Infof(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Infof(format, args...)
}

// InfoKV writes a message and key-value pairs
// at the information level using the logger from the context.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn writes a warning level message using the logger from the context.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// Warnf writes a formatted warning level message using the logger from the context.
func Warnf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Warnf(format, args...)
}

// WarnKV writes a message and key-value pairs
// at the warning level using the logger from the context.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// Errorf writes a formatted error level message using the logger from the context.
func Errorf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Errorf(format, args...)
}

// ErrorKV writes a message and key-value pairs
// at the error level using the logger from the context.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
