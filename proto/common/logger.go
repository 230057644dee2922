package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// logOutput is where all loggers created by CreateLogger write to
var logOutput io.Writer = os.Stdout

// levels maps the accepted level names to dragonboat levels. The first name
// of a level is its label in log lines.
var levels = []struct {
	names []string
	level logger.LogLevel
}{
	{[]string{"DEBUG"}, logger.DEBUG},
	{[]string{"INFO"}, logger.INFO},
	{[]string{"WARN", "WARNING"}, logger.WARNING},
	{[]string{"ERROR"}, logger.ERROR},
	{[]string{"CRIT", "CRITICAL"}, logger.CRITICAL},
}

// --------------------------------------------------------------------------
// Package Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// pkgLogger writes "LEVEL | package | message" lines. The level may be
// changed while other goroutines log.
type pkgLogger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

func (l *pkgLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *pkgLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *pkgLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *pkgLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *pkgLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf logs at CRITICAL and panics with the message
func (l *pkgLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logf(logger.CRITICAL, "%s", msg)
	panic(msg)
}

func (l *pkgLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.out.Printf("%-5s | %-10s | %s", label(level), l.name, fmt.Sprintf(format, args...))
}

func label(level logger.LogLevel) string {
	for _, lv := range levels {
		if lv.level == level {
			return lv.names[0]
		}
	}
	return "?"
}

// CreateLogger is the logger.Factory installed by InitLoggers
func CreateLogger(pkgName string) logger.ILogger {
	l := &pkgLogger{
		name: pkgName,
		out:  log.New(logOutput, "", log.Ldate|log.Ltime),
	}
	l.SetLevel(logger.INFO)
	return l
}

// ParseLogLevel converts a level name (case insensitive) to logger.LogLevel.
// CRITICAL is not a valid input.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	name := strings.ToUpper(level)
	for _, lv := range levels {
		if lv.level == logger.CRITICAL {
			continue
		}
		for _, n := range lv.names {
			if n == name {
				return lv.level, nil
			}
		}
	}
	return logger.INFO, fmt.Errorf("invalid log level: %q. must be one of debug, info, warn, error", level)
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames lists the package loggers of this module
var LoggerNames = []string{"transport", "session", "dispatch", "server", "metrics", "client"}

// InitLoggers installs CreateLogger as dragonboats logger factory and sets
// the level of all package loggers
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
