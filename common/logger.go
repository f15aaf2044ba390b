package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is implemented by any logging system that is used for standard logs.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
}

type loggingLevel int

const (
	DEBUG loggingLevel = iota
	INFO
	WARNING
	ERROR
)

// ParseLevel maps "debug", "info", "warning"/"warn" and "error" to a level. Unknown names give INFO.
func ParseLevel(name string) loggingLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warning", "warn":
		return WARNING
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (level loggingLevel) slogLevel() slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARNING:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type DefaultLog struct {
	*slog.Logger
	level loggingLevel
}

func DefaultLogger(level loggingLevel) *DefaultLog {
	return NewLogger(os.Stderr, level)
}

// NewLogger writes text records to w, dropping anything below level.
func NewLogger(w io.Writer, level loggingLevel) *DefaultLog {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return &DefaultLog{Logger: slog.New(handler).With("app", "lant"), level: level}
}

func (l *DefaultLog) logf(level loggingLevel, f string, v ...interface{}) {
	if l.level > level {
		return
	}
	l.Log(context.Background(), level.slogLevel(), fmt.Sprintf(f, v...))
}

func (l *DefaultLog) Errorf(f string, v ...interface{}) {
	l.logf(ERROR, f, v...)
}

func (l *DefaultLog) Warningf(f string, v ...interface{}) {
	l.logf(WARNING, f, v...)
}

func (l *DefaultLog) Infof(f string, v ...interface{}) {
	l.logf(INFO, f, v...)
}

func (l *DefaultLog) Debugf(f string, v ...interface{}) {
	l.logf(DEBUG, f, v...)
}

// NopLogger discards everything. Tests use it to keep output quiet.
type NopLogger struct{}

func (NopLogger) Errorf(string, ...interface{})   {}
func (NopLogger) Warningf(string, ...interface{}) {}
func (NopLogger) Infof(string, ...interface{})    {}
func (NopLogger) Debugf(string, ...interface{})   {}
