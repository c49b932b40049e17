// Package logger holds the process-wide zap logger. Components take a
// *Logger at construction; the package-level functions exist for code
// that runs before wiring is done.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"resonance/pkg/errors"
)

var globalLogger *Logger

// Logger is a sugared zap logger that can mirror errors into an error
// tracker when one is attached.
type Logger struct {
	*zap.SugaredLogger
	errorTracker errors.Tracker
}

// Init builds the global logger. Production env gets JSON output;
// anything else gets the colored console encoder. An unparseable level
// falls back to info rather than failing startup.
func Init(level string, env string) error {
	cfg := configFor(env)
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	base, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	globalLogger = &Logger{SugaredLogger: base.Sugar()}
	return nil
}

func configFor(env string) zap.Config {
	if env == "production" {
		return zap.NewProductionConfig()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// SetErrorTracker attaches a tracker so Error/Errorf calls are also
// reported to it. Wired after config load, once Sentry is configured.
func SetErrorTracker(tracker errors.Tracker) {
	if globalLogger != nil {
		globalLogger.errorTracker = tracker
	}
}

// Get returns the global logger, building a development fallback if
// Init has not run yet.
func Get() *Logger {
	if globalLogger == nil {
		base, _ := zap.NewDevelopment()
		globalLogger = &Logger{SugaredLogger: base.Sugar()}
	}
	return globalLogger
}

// With returns a child logger carrying extra key/value fields.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		errorTracker:  l.errorTracker,
	}
}

// WithFields is With for callers that already hold a field map.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.With(args...)
}

// Error logs and, when a tracker is attached, reports the error.
func (l *Logger) Error(args ...interface{}) {
	l.SugaredLogger.Error(args...)
	l.track(context.Background(), errors.Wrapf(errors.ErrInternal, "%v", args), nil)
}

// Errorf logs a formatted error and reports it to the tracker.
func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.track(context.Background(), fmt.Errorf(template, args...), nil)
}

// ErrorWithContext logs an error and reports it with the caller's
// context and tags.
func (l *Logger) ErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	l.SugaredLogger.Error(err)
	l.track(ctx, err, tags)
}

func (l *Logger) track(ctx context.Context, err error, tags map[string]string) {
	if l.errorTracker == nil {
		return
	}
	if tags == nil {
		tags = map[string]string{"component": "logger"}
	}
	l.errorTracker.CaptureError(ctx, err, tags)
}

// Package-level shortcuts over the global logger.
func Debug(args ...interface{})                   { Get().Debug(args...) }
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Info(args ...interface{})                    { Get().Info(args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warn(args ...interface{})                    { Get().Warn(args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Error(args ...interface{})                   { Get().Error(args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }
func Fatal(args ...interface{})                   { Get().Fatal(args...) }
func Fatalf(template string, args ...interface{}) { Get().Fatalf(template, args...) }

// Sync flushes buffered entries; called on shutdown.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
