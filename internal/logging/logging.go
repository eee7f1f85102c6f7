// Package logging builds the zerolog logger shared by the watcher: a
// human-readable console stream on stdout plus JSON lines appended to a
// local log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type Config struct {
	Level   string
	Console bool
	File    string // empty disables the file sink
	Debug   bool   // forces debug level
}

// Stdout is swapped in tests.
var Stdout io.Writer = os.Stdout

// New returns a logger and a closer for the log file. The closer is never nil.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	zerolog.ErrorFieldName = "err"

	level := ParseLevel(cfg.Level, zerolog.InfoLevel)
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	writers := make([]io.Writer, 0, 2)
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: Stdout, TimeFormat: consoleTimeFormat})
	}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file %q: %w", path, err)
		}
		closer = f
		writers = append(writers, zerolog.SyncWriter(f))
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

// ParseLevel maps a level name to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def
	case "warning":
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return def
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
