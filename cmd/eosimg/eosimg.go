package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cruciblehq/eosimg/internal"
	"github.com/cruciblehq/eosimg/internal/cli"
	"github.com/cruciblehq/eosimg/internal/logging"
)

// The entry point for eosimg.
//
// Initializes logging from build-time defaults, displays startup information,
// and executes the command line. Interrupts cancel the running conversion.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("eosimg is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	cancel()

	os.Exit(code)
}

// Creates a logger seeded from build-time linker flags.
//
// The logger is replaced after flag parsing via cli.Execute.
func logger() *slog.Logger {
	v := internal.DefaultVerbosity()
	return logging.New(os.Stderr, logging.Level(v.Quiet, v.Debug), logging.FormatAuto, v.Verbose)
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
