package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log field names shared by every pakit log line.
const (
	fieldComponent = "component"
	fieldRunID     = "run_id"
	fieldStage     = "stage"
	fieldEntry     = "entry"
	fieldCommand   = "command"
)

// Logger is a zerolog.Logger carrying pakit's run, stage and entry fields.
// The zero value and a nil *Logger both discard everything.
type Logger struct {
	zlog zerolog.Logger
}

type loggerContextKey struct{}

// NewLogger builds a logger writing to cfg.Output: "stderr" (or empty),
// "stdout", or a file path opened for append.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	w, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return NewLoggerWithWriter(w, cfg), nil
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	return f, nil
}

// NewLoggerWithWriter builds a logger writing to w. Console format is
// human-readable; json writes one object per line.
func NewLoggerWithWriter(w io.Writer, cfg LoggingConfig) *Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zctx := zerolog.New(w).Level(levelOf(cfg.Level)).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	return &Logger{zlog: zctx.Logger()}
}

// levelOf maps a configured level to zerolog. Empty and unknown levels
// mean info; config validation rejects unknown ones earlier.
func levelOf(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying logger for packages that take a plain
// zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.zlog
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{zlog: fn(l.Zerolog().With()).Logger()}
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a logger that discards
// everything.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NopLogger()
}

// NewComponentLogger tags every line with a component name.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str(fieldComponent, component) })
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithRunID(runID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str(fieldRunID, runID) })
}

func (l *Logger) WithCommand(command string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str(fieldCommand, command) })
}

func (l *Logger) WithStage(stage string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str(fieldStage, stage) })
}

// WithEntry tags lines with the package entry path being processed.
func (l *Logger) WithEntry(path string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str(fieldEntry, path) })
}

func (l *Logger) WithError(err error) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Err(err) })
}

func (l *Logger) Trace(msg string) { l.event(zerolog.TraceLevel).Msg(msg) }
func (l *Logger) Debug(msg string) { l.event(zerolog.DebugLevel).Msg(msg) }
func (l *Logger) Info(msg string)  { l.event(zerolog.InfoLevel).Msg(msg) }
func (l *Logger) Warn(msg string)  { l.event(zerolog.WarnLevel).Msg(msg) }
func (l *Logger) Error(msg string) { l.event(zerolog.ErrorLevel).Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.event(zerolog.DebugLevel).Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.event(zerolog.InfoLevel).Msgf(format, args...)
}

// event returns nil, which zerolog treats as a no-op, when the level is
// filtered or the logger is nil.
func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	z := l.Zerolog()
	return z.WithLevel(level)
}
