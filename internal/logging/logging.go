// Package logging is the leveled log sink of the converters. It maps the
// converter levels (debug, detail, summary, warning, error, fatal) onto a
// logrus logger and keeps track of whether any error was reported.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"
)

// Level is a converter log level.
type Level int

const (
	Debug Level = iota
	Detail
	Summary
	Warning
	Error
	Fatal
)

var levelNames = []string{"debug", "detail", "summary", "warning", "error", "fatal"}

func (l Level) String() string {
	if l < Debug || l > Fatal {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Logrus returns the logrus level a converter level is written with.
// Fatal messages are written as errors; aborting is left to the caller.
func (l Level) Logrus() logrus.Level {
	switch l {
	case Debug:
		return logrus.TraceLevel
	case Detail:
		return logrus.DebugLevel
	case Summary:
		return logrus.InfoLevel
	case Warning:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// ErrFatal is returned by Log for messages at Fatal level.
var ErrFatal = errors.NewKind("fatal: %s")

// Logger is a leveled sink on top of a logrus logger.
type Logger struct {
	entry *logrus.Entry
	quiet bool
}

// New returns a Logger writing to base.
func New(base *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithField returns a logger that adds a field to every message.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), quiet: l.quiet}
}

// Quiet returns a logger that drops everything below Error.
func (l *Logger) Quiet() *Logger {
	return &Logger{entry: l.entry, quiet: true}
}

// Log writes the message fragments at the given level. For Fatal it returns
// an ErrFatal error carrying the message, which the caller must propagate.
func (l *Logger) Log(level Level, args ...any) error {
	msg := fmt.Sprint(args...)
	if !l.quiet || level >= Error {
		l.entry.Log(level.Logrus(), msg)
	}
	if level == Fatal {
		return ErrFatal.New(msg)
	}
	return nil
}

// Logf is like Log with a format string.
func (l *Logger) Logf(level Level, format string, args ...any) error {
	return l.Log(level, fmt.Sprintf(format, args...))
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.Logf(Debug, format, args...) }

// Detailf logs at Detail level.
func (l *Logger) Detailf(format string, args ...any) { l.Logf(Detail, format, args...) }

// Summaryf logs at Summary level.
func (l *Logger) Summaryf(format string, args ...any) { l.Logf(Summary, format, args...) }

// Warningf logs at Warning level.
func (l *Logger) Warningf(format string, args ...any) { l.Logf(Warning, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.Logf(Error, format, args...) }

// ErrorCounter is a logrus hook counting error entries.
type ErrorCounter struct {
	n int64
}

// Levels implements logrus.Hook.
func (c *ErrorCounter) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

// Fire implements logrus.Hook.
func (c *ErrorCounter) Fire(*logrus.Entry) error {
	atomic.AddInt64(&c.n, 1)
	return nil
}

// Count returns the number of error entries seen.
func (c *ErrorCounter) Count() int {
	return int(atomic.LoadInt64(&c.n))
}

// HadError reports whether any error entry was seen.
func (c *ErrorCounter) HadError() bool {
	return c.Count() > 0
}

// NewLogrus returns a text logrus logger writing to w at the given level,
// with an ErrorCounter attached.
func NewLogrus(w io.Writer, level Level) (*logrus.Logger, *ErrorCounter) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level.Logrus())
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	counter := &ErrorCounter{}
	l.AddHook(counter)
	return l, counter
}
