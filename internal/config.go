package internal

import (
	"strconv"
)

var (
	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose logging
)

// Logging switches.
type Verbosity struct {
	Quiet   bool // Only warnings and errors are logged.
	Debug   bool // Debug records are logged.
	Verbose bool // Records carry their source location.
}

// Returns the verbosity baked in with linker flags.
//
// The rawQuiet, rawDebug and rawVerbose variables are set via ldflags during
// the build. Unset or unparsable values count as false.
func DefaultVerbosity() Verbosity {
	return Verbosity{
		Quiet:   parseBool(rawQuiet),
		Debug:   parseBool(rawDebug),
		Verbose: parseBool(rawVerbose),
	}
}

// Combines two verbosities; a switch set in either is set in the result.
func (v Verbosity) Or(o Verbosity) Verbosity {
	return Verbosity{
		Quiet:   v.Quiet || o.Quiet,
		Debug:   v.Debug || o.Debug,
		Verbose: v.Verbose || o.Verbose,
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
