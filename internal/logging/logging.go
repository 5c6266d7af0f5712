// Package logging provides the leveled loggers shared across compilation
// phases: a "dbg" logger for verbose tracing and a "warn" logger for
// recoverable anomalies, matching the prefix-per-level convention used
// throughout the x86 lifting tools this module is built in the style of.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
)

// Logger pairs a debug and a warn logger; only the debug logger is gated by
// verbosity.
type Logger struct {
	dbg     *log.Logger
	warn    *log.Logger
	verbose bool
}

// New creates a Logger writing to w. When verbose is false, Debugf is a
// no-op; Warnf always prints.
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{
		dbg:     log.New(w, term.MagentaBold("eaglevm:")+" ", 0),
		warn:    log.New(w, term.RedBold("warning:")+" ", 0),
		verbose: verbose,
	}
}

// Default returns a Logger writing to stderr with verbose tracing disabled.
func Default() *Logger {
	return New(os.Stderr, false)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	l.dbg.Printf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.warn.Printf(format, args...)
}
