package internal

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (

	// Program name used in usage text, config paths and log records.
	Name = "eosimg"

	// String to indicate an undefined variable
	defaultUndefined = "(undefined)"

	// String to indicate a local (non-pipeline) build
	defaultLocalBuild = "(local)"

	// Main branch name used in version strings
	mainBranch = "main"

	// Module version reported by the toolchain for builds from a checkout.
	develVersion = "(devel)"
)

var (
	version   = "" // Version number (e.g., "1.2.3")
	stage     = "" // Development stage or git branch (e.g., "staging", "main")
	gitCommit = "" // Git commit hash (e.g., "a1b2c3d4")
)

// Returns the current version.
//
// Linker flags take precedence. Binaries installed with "go install" fall
// back to the module version recorded in the build info. Returns
// "(undefined)" when neither is available. A "v" prefix is stripped.
func Version() string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = moduleVersion()
	}
	if v == "" {
		return defaultUndefined
	}

	v = strings.ToLower(v)
	return strings.TrimPrefix(v, "v")
}

// Returns the development stage, normally the git branch of the build, or
// "(undefined)".
func Stage() string {
	s := strings.TrimSpace(stage)
	if s == "" {
		return defaultUndefined
	}
	return strings.ToLower(s)
}

// Returns the git commit hash.
//
// Falls back to the VCS revision stamped by the toolchain, shortened to
// twelve characters. Returns "(undefined)" when neither is set.
func GitCommit() string {
	c := strings.TrimSpace(gitCommit)
	if c == "" {
		c = vcsRevision()
	}
	if c == "" {
		return defaultUndefined
	}
	return c
}

// Returns the build architecture.
func Arch() string {
	return runtime.GOARCH
}

// Returns true if this is a local (non-pipeline) build, meaning one of the
// version, commit or stage linker variables is unset.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns a detailed version string.
//
// Pipeline builds are formatted as "<version>+<stage> <git-commit> [<arch>]",
// with the stage omitted on the main branch. Local builds report
// "(local)" followed by whatever the toolchain recorded.
func VersionString() string {
	if IsLocal() {
		if v := moduleVersion(); v != "" {
			return fmt.Sprintf("%s %s [%s]", defaultLocalBuild, strings.TrimPrefix(v, "v"), Arch())
		}
		return defaultLocalBuild
	}

	s := Stage()
	if s == mainBranch {
		s = ""
	} else {
		s = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), s, GitCommit(), Arch())
}

// Returns the main module version from the build info, or "" for builds
// from a checkout.
func moduleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == develVersion {
		return ""
	}
	return info.Main.Version
}

// Returns the shortened VCS revision from the build info, or "".
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}
