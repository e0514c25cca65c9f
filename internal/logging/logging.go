// Package logging provides structured logging for the gateway using zerolog.
// Lifecycle code logs through Session so every line for a messaging session
// carries its clientId.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it; a usable default is
// installed at package load so early code paths can log.
var Logger zerolog.Logger

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit.
	Level zerolog.Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty switches to the human-readable console writer.
	Pretty bool
}

// Init replaces the process-wide logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps a level name (DEBUG, INFO, WARN, ERROR, FATAL,
// case-insensitive) to its zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Session returns a child logger scoped to one messaging session. Every
// lifecycle log line carries the clientId field so multi-tenant logs can be
// filtered per session.
func Session(clientID string) zerolog.Logger {
	return Logger.With().Str("clientId", clientID).Logger()
}

// Debug starts a debug level message.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts an info level message.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a warn level message.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts an error level message.
func Error() *zerolog.Event { return Logger.Error() }

// Fatal starts a fatal level message; Msg/Send exit the process.
func Fatal() *zerolog.Event { return Logger.Fatal() }

func init() {
	Init(Config{Level: zerolog.InfoLevel})
}
