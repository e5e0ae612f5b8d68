// Package log provides structured logging for riskpipe built on rs/zerolog.
//
// The Logger interface is slog-shaped (message plus alternating key/value
// fields) so call sites stay backend-agnostic, while the default
// implementation emits zerolog JSON events. Component loggers are obtained
// with GetLoggerWithName, e.g. log.GetLoggerWithName("riskpipe.aggregate").
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is a minimal structured logging interface.
//
// Fields are alternating key/value pairs; a dangling key is paired with
// "(MISSING)". With returns a child logger with the fields pre-populated.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Logger
}

var (
	mu     sync.RWMutex
	root   zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	level  zerolog.Level  = zerolog.InfoLevel
)

// SetOutput redirects all loggers created after the call to w.
// Intended for tests and CLI setup.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the minimum level for subsequently created loggers.
// Unknown level strings fall back to info.
func SetLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	switch lvl {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &zerologLogger{zl: root.Level(level)}
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &zerologLogger{zl: root.Level(level).With().Str("component", name).Logger()}
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.emit(l.zl.Warn(), msg, fields) }

func (l *zerologLogger) Error(msg string, fields ...any) {
	ev := l.zl.Error()
	// An error value in the leading position becomes the "error" field so
	// zerolog marshalers and stack traces are preserved.
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			fields = fields[1:]
		}
	}
	l.emit(ev, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(fields) {
			ev = ev.Interface(key, fields[i+1])
		} else {
			ev = ev.Str(key, "(MISSING)")
		}
	}
	ev.Msg(msg)
}
