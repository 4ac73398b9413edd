package slogx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects the level and output format of the process logger.
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// New builds a slog logger backed by zerolog.
func New(opts Options) (*slog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var zl zerolog.Logger
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Stamp}).With().Timestamp().Logger()
	case FormatJSON:
		zl = zerolog.New(out).With().Timestamp().Logger()
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: lvl})), nil
}

// Setup installs the logger built from opts as the process default.
func Setup(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
