package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/soyeahso/rentdesk/internal/config"
)

// Console styles accepted by NewStyled.
const (
	StylePretty  = "pretty"
	StyleCompact = "compact"
	StyleJSON    = "json"
)

// Logger wraps zerolog to provide subsystem-scoped child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New creates a root logger writing to the given writer at the specified level.
// If w is nil, defaults to pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = consoleWriter(os.Stderr, StylePretty)
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	zl = zl.Level(parseLevel(level))
	return &Logger{zl: zl}
}

// NewStyled creates a root logger on stderr using one of the console styles.
// Unknown styles fall back to pretty output.
func NewStyled(level, style string) *Logger {
	return New(consoleWriter(os.Stderr, style), level)
}

// NewFromConfig creates the root logger described by the logging section.
func NewFromConfig(cfg config.LoggingConfig) *Logger {
	return NewStyled(cfg.Level, cfg.ConsoleStyle)
}

func consoleWriter(out io.Writer, style string) io.Writer {
	switch style {
	case StyleJSON:
		return out
	case StyleCompact:
		return zerolog.ConsoleWriter{
			Out:          out,
			NoColor:      true,
			TimeFormat:   time.TimeOnly,
			PartsExclude: []string{zerolog.CallerFieldName},
		}
	default:
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
}

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// With returns a child logger carrying an extra string field on every event.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Trace logs at trace level.
func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }

// Debug logs at debug level.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info logs at info level.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn logs at warn level.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error logs at error level.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Fatal logs at fatal level and exits.
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Zerolog returns the underlying zerolog.Logger for advanced use.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Writer adapts the logger to an io.Writer at the given level, for libraries
// that only accept a writer (gin's debug output, for one).
func (l *Logger) Writer(level string) io.Writer {
	return levelWriter{zl: l.zl, level: parseLevel(level)}
}

type levelWriter struct {
	zl    zerolog.Logger
	level zerolog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	n := len(p)
	for n > 0 && (p[n-1] == '\n' || p[n-1] == '\r') {
		n--
	}
	if n > 0 {
		w.zl.WithLevel(w.level).Msg(string(p[:n]))
	}
	return len(p), nil
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "silent":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
