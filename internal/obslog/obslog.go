// Package obslog wraps zerolog into a logger handle that is constructed
// once at startup and passed into each component explicitly, rather than
// reached for as a package-level global.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logger verbosity setting.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures a root Logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Logger is a structured logger handle, built via New and passed into
// components at construction rather than reached for as a global.
type Logger struct {
	z zerolog.Logger
}

// New builds a root Logger per cfg. Components derive scoped children from
// it via With.
func New(cfg Config) Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var z zerolog.Logger
	if cfg.JSONOutput {
		z = zerolog.New(output).Level(level).With().Timestamp().Logger()
	} else {
		z = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return Logger{z: z}
}

// With returns a child logger with component attached to every entry it
// writes. MCP stdio transports speak JSON on stdout; components should log
// to stderr, which New's default Output does.
func (l Logger) With(component string) Logger {
	return Logger{z: l.z.With().Str("component", component).Logger()}
}

func (l Logger) event(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (l Logger) Debug(msg string, kv ...any) { l.event(l.z.Debug(), msg, kv) }
func (l Logger) Info(msg string, kv ...any)  { l.event(l.z.Info(), msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { l.event(l.z.Warn(), msg, kv) }
func (l Logger) Error(msg string, kv ...any) { l.event(l.z.Error(), msg, kv) }
