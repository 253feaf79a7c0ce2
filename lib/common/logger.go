package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Line logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// LogOutput is where all loggers write to. Logs go to stderr so they never mix
// with command output on stdout.
var LogOutput io.Writer = os.Stderr

var outputMu sync.Mutex

// lineLogger writes one "<time> LEVEL | pkg | message" line per call
type lineLogger struct {
	pkg   string
	mu    sync.RWMutex
	level logger.LogLevel
}

func (l *lineLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *lineLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

func (l *lineLogger) Debugf(format string, args ...interface{}) {
	l.write(logger.DEBUG, "DEBUG", format, args)
}

func (l *lineLogger) Infof(format string, args ...interface{}) {
	l.write(logger.INFO, "INFO", format, args)
}

func (l *lineLogger) Warningf(format string, args ...interface{}) {
	l.write(logger.WARNING, "WARN", format, args)
}

func (l *lineLogger) Errorf(format string, args ...interface{}) {
	l.write(logger.ERROR, "ERROR", format, args)
}

// Panicf always panics, the message is only logged if CRITICAL is enabled
func (l *lineLogger) Panicf(format string, args ...interface{}) {
	l.write(logger.CRITICAL, "PANIC", format, args)
	panic(fmt.Sprintf(format, args...))
}

func (l *lineLogger) write(level logger.LogLevel, tag, format string, args []interface{}) {
	if !l.enabled(level) {
		return
	}
	line := fmt.Sprintf("%s %-5s | %-12s | %s\n",
		time.Now().Format("2006/01/02 15:04:05"), tag, l.pkg, fmt.Sprintf(format, args...))

	outputMu.Lock()
	defer outputMu.Unlock()
	_, _ = io.WriteString(LogOutput, line)
}

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	return &lineLogger{pkg: pkgName, level: logger.WARNING}
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

var levelNames = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
}

// Loggers lists the names of all package loggers
var Loggers = []string{"observation", "store", "db", "cli"}

// dragonboat refuses a second factory, so it is installed exactly once per process
var installFactory sync.Once

// InitLoggers installs the line logger factory (once) and sets the level of all
// package loggers. It may be called again to change the level.
func InitLoggers(level string) error {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	installFactory.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range Loggers {
		logger.GetLogger(name).SetLevel(logLevel)
	}
	return nil
}
