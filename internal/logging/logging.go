// Package logging builds the process logger.
//
// Records go to a single writer, normally stderr, as text when it is a
// terminal and as JSON otherwise. The level is held in a [slog.LevelVar] so
// it can be raised or lowered after flags are parsed.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattn/go-isatty"
)

// Record format.
type Format int

const (
	FormatAuto Format = iota // Text on terminals, JSON elsewhere.
	FormatText
	FormatJSON
)

// Parses a format name ("auto", "text" or "json").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatAuto, fmt.Errorf("unknown log format %q", s)
}

// Returns the level selected by the verbosity switches. Debug wins over
// quiet.
func Level(quiet, debug bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Creates a logger writing to w.
//
// With verbose, records carry their source location. Text records on a
// terminal omit the timestamp.
func New(w io.Writer, level slog.Leveler, format Format, verbose bool) *slog.Logger {
	if w == nil {
		panic("logging: writer must not be nil")
	}

	terminal := IsTerminal(w)
	if format == FormatAuto {
		format = FormatJSON
		if terminal {
			format = FormatText
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	}

	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	if terminal {
		opts.ReplaceAttr = dropTime
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
