/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log wraps a zap-backed logr.Logger with the level vocabulary
// used throughout the engine (error, warning, info, debug, trace) and
// the context-threading helpers every stage and operation driver uses
// to attach a request-scoped logger.
package log

import (
	"context"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level string vocabulary, honored by --log-level on every entrypoint.
const (
	ErrorLevelString   = "error"
	WarningLevelString = "warning"
	InfoLevelString    = "info"
	DebugLevelString   = "debug"
	TraceLevelString   = "trace"
	DefaultLevelString = InfoLevelString
)

// zapcore levels backing the five-level vocabulary. logr has no native
// "warning" between Info and Error, so Warning/Debug/Trace are rendered
// as Info-level calls at increasing logr verbosity (V(1), V(2), V(3)).
// For the --log-level threshold below, Error, Info and Debug map onto
// their own zapcore level; Warning shares Info's and Trace shares
// Debug's.
const (
	ErrorLevel   = zapcore.ErrorLevel
	WarningLevel = zapcore.InfoLevel
	InfoLevel    = zapcore.InfoLevel
	DebugLevel   = zapcore.DebugLevel
	TraceLevel   = zapcore.DebugLevel
	DefaultLevel = InfoLevel
)

var globalLogger logr.Logger = logr.Discard()

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

// LevelFromString maps one of the level strings to a zapcore.Level,
// falling back to DefaultLevel for an unrecognized value.
func LevelFromString(s string) zapcore.Level {
	switch s {
	case ErrorLevelString:
		return ErrorLevel
	case WarningLevelString:
		return WarningLevel
	case InfoLevelString:
		return InfoLevel
	case DebugLevelString:
		return DebugLevel
	case TraceLevelString:
		return TraceLevel
	default:
		return DefaultLevel
	}
}

// New builds the process-wide logger writing JSON lines to destination
// (empty meaning stderr) at the given level, and installs it as the
// package-level logger returned by FromContext when no request-scoped
// logger has been attached.
func New(level, destination string) (logr.Logger, error) {
	var dest *os.File
	if destination == "" {
		dest = os.Stderr
	} else {
		var err error
		dest, err = os.OpenFile(destination, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return logr.Logger{}, err
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(dest),
		LevelFromString(level),
	)

	zl := zap.New(core, zap.AddCaller())
	logger := zapr.NewLogger(zl)

	SetLogger(logger)

	return logger, nil
}

// SetLogger installs l as the process-wide default logger.
func SetLogger(l logr.Logger) {
	globalLogger = l
}

// WithName returns the process-wide logger scoped under name.
func WithName(name string) logr.Logger {
	return globalLogger.WithName(name)
}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, ctxKey, logger)
}

// FromContext extracts the request-scoped logger from ctx, falling back
// to the process-wide logger when none was attached.
func FromContext(ctx context.Context) logr.Logger {
	if ctx == nil {
		return globalLogger
	}
	if logger, ok := ctx.Value(ctxKey).(logr.Logger); ok {
		return logger
	}
	return globalLogger
}

// Error logs err at error level against the process-wide logger.
func Error(err error, msg string, keysAndValues ...interface{}) {
	globalLogger.Error(err, msg, keysAndValues...)
}

// Info logs msg at info level against the process-wide logger.
func Info(msg string, keysAndValues ...interface{}) {
	globalLogger.Info(msg, keysAndValues...)
}

// Warning logs msg at warning level against the process-wide logger.
func Warning(msg string, keysAndValues ...interface{}) {
	globalLogger.V(1).Info(msg, keysAndValues...)
}

// Debug logs msg at debug level against the process-wide logger.
func Debug(msg string, keysAndValues ...interface{}) {
	globalLogger.V(2).Info(msg, keysAndValues...)
}

// Trace logs msg at the most verbose level against the process-wide logger.
func Trace(msg string, keysAndValues ...interface{}) {
	globalLogger.V(3).Info(msg, keysAndValues...)
}
