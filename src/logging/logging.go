// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// New returns a logger at the given level. format "json" writes one JSON
// object per line; anything else writes human readable console lines.
func New(level, format string) *log.Logger {
	return NewWithOutput(level, format, os.Stderr)
}

func NewWithOutput(level, format string, out io.Writer) *log.Logger {
	if level == "" {
		level = "info"
	}

	logger := &log.Logger{
		Level:      log.ParseLevel(strings.ToLower(level)),
		TimeFormat: timeFormat,
	}
	if strings.EqualFold(format, "json") {
		logger.Writer = &log.IOWriter{Writer: out}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: out, QuoteString: true}
	}
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
