// Package logx is a small leveled wrapper over the standard log package,
// used in place of the scattered fmt.Printf/log.Printf debug tags the
// emulator's components otherwise reach for.
package logx

import (
	"log"
	"os"
)

// Level controls which messages reach the underlying logger.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelWarn
	LevelDebug
)

// Logger is a tagged, level-gated logger for one subsystem (e.g. "ppu",
// "apu", "input"). The zero value is silent.
type Logger struct {
	tag   string
	level Level
	out   *log.Logger
}

// New creates a Logger that prefixes every line with [tag].
func New(tag string, level Level) *Logger {
	return &Logger{
		tag:   tag,
		level: level,
		out:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetLevel changes the logger's verbosity at runtime.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logAt(LevelDebug, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logAt(LevelWarn, format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logAt(LevelError, format, args...)
}

func (l *Logger) logAt(level Level, format string, args ...interface{}) {
	if l == nil || l.level < level {
		return
	}
	l.out.Printf("["+l.tag+"] "+format, args...)
}
