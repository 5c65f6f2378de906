// Package logger provides leveled, component-tagged logging for mediaclaw.
// Components ("channel", "media", "telegraph", ...) show up as a structured
// field so one process log can be filtered per concern.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	DEBUG = zerolog.DebugLevel
	INFO  = zerolog.InfoLevel
	WARN  = zerolog.WarnLevel
	ERROR = zerolog.ErrorLevel
)

var root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	Level(INFO).
	With().Timestamp().Logger()

// SetLevel sets the minimum level for the process-wide logger.
func SetLevel(level Level) {
	root = root.Level(level)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w zerolog.ConsoleWriter) {
	root = zerolog.New(w).Level(root.GetLevel()).With().Timestamp().Logger()
}

func DebugC(component, msg string) {
	root.Debug().Str("component", component).Msg(msg)
}

func DebugCF(component, msg string, fields map[string]any) {
	root.Debug().Str("component", component).Fields(fields).Msg(msg)
}

func InfoC(component, msg string) {
	root.Info().Str("component", component).Msg(msg)
}

func InfoCF(component, msg string, fields map[string]any) {
	root.Info().Str("component", component).Fields(fields).Msg(msg)
}

func WarnC(component, msg string) {
	root.Warn().Str("component", component).Msg(msg)
}

func WarnCF(component, msg string, fields map[string]any) {
	root.Warn().Str("component", component).Fields(fields).Msg(msg)
}

func ErrorC(component, msg string) {
	root.Error().Str("component", component).Msg(msg)
}

func ErrorCF(component, msg string, fields map[string]any) {
	root.Error().Str("component", component).Fields(fields).Msg(msg)
}
