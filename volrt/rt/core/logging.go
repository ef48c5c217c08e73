package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Logger is the leveled logger every component takes. A nil Logger is
// never stored; see OrNop.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type level uint8

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = [...]string{
	levelDebug: "DEBUG",
	levelInfo:  "INFO",
	levelWarn:  "WARN",
	levelError: "ERROR",
}

// DefaultLogger writes DEBUG and INFO to one stream and WARN and ERROR to
// another, each line tagged "[prefix] LEVEL:".
type DefaultLogger struct {
	debug  atomic.Bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

// NewDefaultLogger logs to stdout and stderr with microsecond timestamps.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLogger(os.Stdout, os.Stderr, prefix, debug, log.LstdFlags|log.Lmicroseconds)
}

func NewLogger(out, errOut io.Writer, prefix string, debug bool, flags int) *DefaultLogger {
	l := &DefaultLogger{
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
	l.debug.Store(debug)
	return l
}

func (l *DefaultLogger) DebugEnabled() bool        { return l.debug.Load() }
func (l *DefaultLogger) SetDebug(enabled bool)     { l.debug.Store(enabled) }
func (l *DefaultLogger) Debugf(f string, a ...any) { l.logf(levelDebug, f, a...) }
func (l *DefaultLogger) Infof(f string, a ...any)  { l.logf(levelInfo, f, a...) }
func (l *DefaultLogger) Warnf(f string, a ...any)  { l.logf(levelWarn, f, a...) }
func (l *DefaultLogger) Errorf(f string, a ...any) { l.logf(levelError, f, a...) }

func (l *DefaultLogger) logf(lv level, format string, args ...any) {
	if lv == levelDebug && !l.DebugEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] %s: %s", l.prefix, levelNames[lv], msg)
	} else {
		msg = levelNames[lv] + ": " + msg
	}
	dst := l.out
	if lv >= levelWarn {
		dst = l.err
	}
	dst.Print(msg)
}

type nopLogger struct{}

func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
