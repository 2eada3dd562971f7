// Package logging builds the zerolog logger used across usersvc.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ssargent/usersvc/pkg/config"
)

// New creates a logger writing to stderr.
func New(cfg config.Logging) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a logger writing to w. Format "console" renders
// human-readable lines, "json" one JSON object per line.
func NewWithWriter(cfg config.Logging, w io.Writer) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
		out = w
	default:
		return zerolog.Nop(), errors.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", name)
	}
	return level, nil
}

// SetGlobalLevel applies a level name process-wide, e.g. after a config
// reload.
func SetGlobalLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// NewReloadable creates a stderr logger whose level is governed by the
// process-wide level, so a later SetGlobalLevel can raise or lower it.
func NewReloadable(cfg config.Logging) (zerolog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return zerolog.Nop(), err
	}
	if err := SetGlobalLevel(cfg.Level); err != nil {
		return zerolog.Nop(), err
	}
	return logger.Level(zerolog.TraceLevel), nil
}
