// Package logger provides the leveled, facility-tagged logger used
// across deltasync's lib/* packages, in the Debugln/Infoln/Warnln
// style the teacher's services are written against.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/getsentry/raven-go"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
)

// Logger is a facility-scoped wrapper around the standard library
// logger. A facility identifies the subsystem ("blockmatch", "shaper",
// ...) and is prefixed onto every line.
type Logger struct {
	facility string
	level    Level
	std      *log.Logger
	raven    *raven.Client
}

var defaultLevel = parseEnvLevel()

func parseEnvLevel() Level {
	switch strings.ToUpper(os.Getenv("DELTASYNC_LOGLEVEL")) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	default:
		return LevelInfo
	}
}

// New returns a Logger for facility. Output goes to stderr at
// defaultLevel, which honors DELTASYNC_LOGLEVEL (DEBUG/INFO/WARN).
func New(facility string) *Logger {
	return &Logger{
		facility: facility,
		level:    defaultLevel,
		std:      log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetRavenDSN wires Warn-and-above output to a Sentry project. Passing
// an empty DSN disables forwarding again. Safe to call from multiple
// goroutines only before any logging starts.
func (l *Logger) SetRavenDSN(dsn string) error {
	if dsn == "" {
		l.raven = nil
		return nil
	}
	client, err := raven.New(dsn)
	if err != nil {
		return err
	}
	l.raven = client
	return nil
}

func (l *Logger) log(level Level, tag string, args ...interface{}) {
	if level < l.level {
		return
	}
	line := fmt.Sprintln(args...)
	l.std.Printf("%s (%s): %s", tag, l.facility, line)
	if level == LevelWarn && l.raven != nil {
		l.raven.CaptureMessage(fmt.Sprintf("[%s] %s", l.facility, line), nil)
	}
}

func (l *Logger) logf(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	line := fmt.Sprintf(format, args...)
	l.std.Printf("%s (%s): %s", tag, l.facility, line)
	if level == LevelWarn && l.raven != nil {
		l.raven.CaptureMessage(fmt.Sprintf("[%s] %s", l.facility, line), nil)
	}
}

func (l *Logger) Debugln(args ...interface{}) { l.log(LevelDebug, "DEBUG", args...) }
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}
func (l *Logger) Infoln(args ...interface{}) { l.log(LevelInfo, "INFO", args...) }
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, "INFO", format, args...)
}
func (l *Logger) Warnln(args ...interface{}) { l.log(LevelWarn, "WARN", args...) }
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, "WARN", format, args...)
}
