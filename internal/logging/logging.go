// Package logging provides the structured logger shared across every
// package, replacing the teacher's bare log.Printf calls with zerolog
// component loggers.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Logger()

// Component returns a child logger tagged with the given subsystem name,
// mirroring how the teacher's log lines were prefixed by subsystem
// ("Room %s started", "Stats: ...").
func Component(name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// SetLevel adjusts the global minimum log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
