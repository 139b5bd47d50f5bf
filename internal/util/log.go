// Package util provides shared logging and statistics helpers.
package util

import (
	"os"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = "02 Jan 15:04:05"

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "02 Jan 15:04:05",
	}
	root = zerolog.New(console).With().Timestamp().Logger()
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ComponentLogger returns a logger tagged with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
