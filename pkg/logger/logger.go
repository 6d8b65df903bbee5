package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
)

const (
	APP          = "APP"
	CATALOG      = "CATALOG"
	CHAT         = "CHAT"
	CONFIG       = "CONFIG"
	CONVERSATION = "CONVERSATION"
	DISPATCH     = "DISPATCH"
	EVENTS       = "EVENTS"
	HANDLER      = "HANDLER"
	MIDDLEWARE   = "MIDDLEWARE"
	PROTOCOL     = "PROTOCOL"
	REDIS        = "REDIS"
	SERVICE      = "SERVICE"
	WEBSOCKET    = "WEBSOCKET"
)

var (
	mu           sync.RWMutex
	currentLevel = getLogLevel()
	base         = newBase(os.Stderr)
)

func newBase(w io.Writer) zerolog.Logger {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetOutput redirects all namespaced log output. It returns a function restoring
// the previous writer.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	previous := base
	base = newBase(w)
	mu.Unlock()

	return func() {
		mu.Lock()
		base = previous
		mu.Unlock()
	}
}

// SetLevel overrides the level read from LOG_LEVEL.
func SetLevel(level LogLevel) {
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

func getLogLevel() LogLevel {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Zerolog maps the configured level onto zerolog's global level so that
// log.Info() style call sites obey LOG_LEVEL too.
func Zerolog() zerolog.Level {
	mu.RLock()
	defer mu.RUnlock()
	switch currentLevel {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func emit(level LogLevel, event func(zerolog.Logger) *zerolog.Event, namespace, format string, v ...interface{}) {
	mu.RLock()
	enabled := currentLevel >= level
	l := base
	mu.RUnlock()
	if !enabled {
		return
	}
	event(l).Str("namespace", namespace).Msg(fmt.Sprintf(format, v...))
}

func Debug(namespace, format string, v ...interface{}) {
	emit(DEBUG, func(l zerolog.Logger) *zerolog.Event { return l.Debug() }, namespace, format, v...)
}

func Info(namespace, format string, v ...interface{}) {
	emit(INFO, func(l zerolog.Logger) *zerolog.Event { return l.Info() }, namespace, format, v...)
}

func Warn(namespace, format string, v ...interface{}) {
	emit(WARN, func(l zerolog.Logger) *zerolog.Event { return l.Warn() }, namespace, format, v...)
}

func Error(namespace, format string, v ...interface{}) {
	emit(ERROR, func(l zerolog.Logger) *zerolog.Event { return l.Error() }, namespace, format, v...)
}

// Fatal logs at error severity with a fatal marker; it does not exit.
func Fatal(namespace, format string, v ...interface{}) {
	emit(ERROR, func(l zerolog.Logger) *zerolog.Event { return l.Error().Bool("fatal", true) }, namespace, format, v...)
}
