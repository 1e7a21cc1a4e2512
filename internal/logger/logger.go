package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := log.GetLevel()
	log = newLogger(w).Level(level)
}

// SetJSONOutput switches to machine readable lines on w.
func SetJSONOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := log.GetLevel()
	log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(level)
}

// SetVerbose enables debug logging.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(zerolog.DebugLevel)
	} else {
		SetLevel(zerolog.InfoLevel)
	}
}

func Level() zerolog.Level {
	mu.RLock()
	defer mu.RUnlock()
	return log.GetLevel()
}

func event(level zerolog.Level, component, msg string, fields map[string]interface{}) {
	mu.RLock()
	l := log
	mu.RUnlock()

	e := l.WithLevel(level)
	if e == nil {
		return
	}
	if component != "" {
		e = e.Str("component", component)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	event(zerolog.DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	event(zerolog.InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	event(zerolog.WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	event(zerolog.ErrorLevel, component, msg, fields)
}

func Info(msg string)  { InfoCF("", msg, nil) }
func Warn(msg string)  { WarnCF("", msg, nil) }
func Error(msg string) { ErrorCF("", msg, nil) }
