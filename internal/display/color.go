// Package display renders calendars and status lines for the terminal.
//
// Colors use raw ANSI escape codes. They respect the NO_COLOR environment
// variable (https://no-color.org/) and are disabled automatically when stdout
// is not a terminal.
package display

import (
	"os"
)

// ANSI escape codes for styling.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// enabled is set once at init time.
var enabled bool

func init() {
	enabled = shouldEnable()
}

func shouldEnable() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	// FORCE_COLOR is honoured for testing.
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetEnabled overrides the auto-detected color state, e.g. when --json
// forces plain output.
func SetEnabled(b bool) {
	enabled = b
}

// Enabled reports whether color output is currently active.
func Enabled() bool {
	return enabled
}

func wrap(code, text string) string {
	if !enabled {
		return text
	}
	return code + text + reset
}

// Bold returns text rendered in bold.
func Bold(text string) string { return wrap(bold, text) }

// Dim returns text rendered faint.
func Dim(text string) string { return wrap(dim, text) }

// Good marks successful values.
func Good(text string) string { return wrap(green, text) }

// Warn marks approximate or degraded values.
func Warn(text string) string { return wrap(yellow, text) }

// Accent highlights today's row.
func Accent(text string) string { return wrap(bold+cyan, text) }
