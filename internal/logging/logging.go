// Package logging builds the zerolog logger shared by the engine and its
// command-line and HTTP surfaces.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/ramadan-times/internal/display"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "warn"

// New returns a logger writing to w at the given level. Terminals get the
// human-readable console format; anything else gets JSON lines.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl, _ = zerolog.ParseLevel(DefaultLevel)
	}

	if f, ok := w.(*os.File); ok && display.IsTerminal(f) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Setup builds a stderr logger and installs it as the package-global logger.
func Setup(level string) zerolog.Logger {
	l := New(level, os.Stderr)
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}

// ValidLevel reports whether s names a zerolog level.
func ValidLevel(s string) bool {
	_, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	return err == nil && s != ""
}
