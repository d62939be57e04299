package logx

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field mutates a zerolog event.
//
// This mirrors the ergonomics of slog.Attr without depending on slog.
// Fields are applied in-order; if the same key is set twice, later wins.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Float64(k string, v float64) Field {
	return func(e *zerolog.Event) { e.Float64(k, v) }
}
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field        { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger is a lightweight structured logger.
//
// - With() returns a derived logger with additional fixed fields.
// - Zero value is a safe no-op logger.
type Logger struct {
	base    zerolog.Logger
	hasBase bool
	fields  []Field
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{base: zerolog.Nop(), hasBase: true}
}

// NewWriter returns a logger emitting JSON lines to w. Used by tests.
func NewWriter(w io.Writer, level string) Logger {
	base := zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{base: base, hasBase: true}
}

// Setup builds the process logger from config: console writer and/or append-only
// log file. The returned close func releases the file sink (nil-safe no-op when
// no file sink is configured).
func Setup(cfg Config) (Logger, func() error, error) {
	level := parseLevel(cfg.Level, zerolog.InfoLevel)

	var writers []io.Writer
	closeFn := func() error { return nil }

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat})
	}
	if cfg.File.Enabled && strings.TrimSpace(cfg.File.Path) != "" {
		if dir := filepath.Dir(cfg.File.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return Logger{}, nil, err
			}
		}
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return Logger{}, nil, err
		}
		writers = append(writers, f)
		closeFn = f.Close
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	base := zerolog.New(io.MultiWriter(writers...)).Level(level).With().Timestamp().Logger()
	return Logger{base: base, hasBase: true}, closeFn, nil
}

func (l Logger) IsZero() bool { return !l.hasBase }

// With returns a derived logger carrying extra fixed fields.
func (l Logger) With(fields ...Field) Logger {
	out := l
	out.fields = append(append([]Field(nil), l.fields...), fields...)
	return out
}

func (l Logger) Trace(msg string, fields ...Field) { l.emit(l.base.Trace(), msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.emit(l.base.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(l.base.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(l.base.Warn(), msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(l.base.Error(), msg, fields) }

func (l Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	if !l.hasBase || e == nil {
		return
	}
	for _, f := range l.fields {
		if f != nil {
			f(e)
		}
	}
	for _, f := range fields {
		if f != nil {
			f(e)
		}
	}
	e.Msg(msg)
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
