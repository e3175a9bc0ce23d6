// Package log is a thin leveled logging facade over zap. A process-wide
// default logger is installed at startup; request-scoped helpers carry the
// request id picked up from the context.
package log

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zsbai/embytoalist/conf"
)

var (
	global = newDefault()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func newDefault() *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), level)
	return zap.New(core, zap.AddCallerSkip(1)).Sugar()
}

// Setup rebuilds the global logger from the configuration. The returned
// cleanup flushes buffered entries.
func Setup(c *conf.Logger) func() {
	level.SetLevel(ParseLevel(c.Level))

	sink := zapcore.AddSync(os.Stderr)
	if c.Path != "" {
		_ = os.MkdirAll(filepath.Dir(c.Path), 0o755)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			LocalTime:  true,
			Compress:   c.Compress,
		})
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	logger := zap.New(
		zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), sink, level),
		zap.AddCallerSkip(1),
	)

	global = logger.Sugar()
	return func() { _ = logger.Sync() }
}

// SetLevel adjusts the global level at runtime (config reload).
func SetLevel(s string) { level.SetLevel(ParseLevel(s)) }

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Enabled reports whether the given level would be logged.
func Enabled(l zapcore.Level) bool { return level.Enabled(l) }

func Debug(args ...any)              { global.Debug(args...) }
func Debugf(format string, a ...any) { global.Debugf(format, a...) }
func Info(args ...any)               { global.Info(args...) }
func Infof(format string, a ...any)  { global.Infof(format, a...) }
func Warn(args ...any)               { global.Warn(args...) }
func Warnf(format string, a ...any)  { global.Warnf(format, a...) }
func Error(args ...any)              { global.Error(args...) }
func Errorf(format string, a ...any) { global.Errorf(format, a...) }
func Fatal(args ...any)              { global.Fatal(args...) }
func Fatalf(format string, a ...any) { global.Fatalf(format, a...) }
