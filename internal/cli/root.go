package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/eosimg/internal"
	"github.com/cruciblehq/eosimg/internal/logging"
	"github.com/cruciblehq/eosimg/internal/paths"
	"github.com/cruciblehq/eosimg/internal/runtime"
)

const (
	exitSuccess = 0 // Command succeeded.
	exitFailure = 1 // Command ran and failed.
	exitUsage   = 2 // Arguments could not be parsed.
)

const description = `Converts a cEOS-lab archive into a runnable container image.

The archive is imported as an intermediate image, the final image is built
on top of it and the intermediate image is removed.`

// Represents the root command.
type RootCmd struct {
	Quiet     bool   `short:"q" env:"EOSIMG_QUIET" help:"Suppress informational output."`
	Verbose   bool   `short:"v" env:"EOSIMG_VERBOSE" help:"Enable verbose output."`
	Debug     bool   `short:"d" env:"EOSIMG_DEBUG" help:"Enable debug output."`
	LogFormat string `name:"log-format" enum:"auto,text,json" default:"auto" env:"EOSIMG_LOG_FORMAT" help:"Log record format (${enum})."`

	Runtime             string `enum:"containerd,docker" default:"containerd" env:"EOSIMG_RUNTIME" help:"Image store to convert into (${enum})."`
	ContainerdAddress   string `name:"containerd-address" default:"${containerd_address}" env:"EOSIMG_CONTAINERD_ADDRESS" placeholder:"PATH" help:"Containerd socket path."`
	ContainerdNamespace string `name:"containerd-namespace" default:"${containerd_namespace}" env:"EOSIMG_CONTAINERD_NAMESPACE" placeholder:"NAME" help:"Containerd namespace."`
	Snapshotter         string `default:"${snapshotter}" env:"EOSIMG_SNAPSHOTTER" help:"Snapshotter used to unpack the final image."`
	Platform            string `env:"EOSIMG_PLATFORM" placeholder:"OS/ARCH" help:"Platform of imported images. Defaults to the host."`
	Unpack              bool   `env:"EOSIMG_UNPACK" help:"Unpack the final image into the snapshotter."`
	DockerHost          string `name:"docker-host" env:"EOSIMG_DOCKER_HOST" placeholder:"URL" help:"Docker engine endpoint. Defaults to DOCKER_HOST."`
	Naming              string `enum:"timestamp,uuid" default:"timestamp" env:"EOSIMG_NAMING" help:"Intermediate image naming scheme (${enum})."`

	Convert    ConvertCmd    `cmd:"" default:"withargs" help:"Convert an archive into an image."`
	Dockerfile DockerfileCmd `cmd:"" help:"Print the build description of the final image."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`
}

// Streams and hooks of a single command line run.
type app struct {
	root        *RootCmd
	stdout      io.Writer
	stderr      io.Writer
	configPaths []string      // JSON files holding flag defaults.
	open        runtimeOpener // Opens the runtime selected by the flags.
}

// Signals a requested process exit from inside the parser.
type exitCode int

// Parses arguments, configures logging, and runs the selected command.
//
// Returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return run(ctx, args, &app{
		root:        &RootCmd{},
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		configPaths: []string{paths.ConfigFile()},
		open:        openRuntime,
	})
}

func run(ctx context.Context, args []string, a *app) (code int) {
	defer func() {
		if r := recover(); r != nil {
			exit, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(exit)
		}
	}()

	parser, err := kong.New(a.root,
		kong.Name(internal.Name),
		kong.Description(description),
		kong.Writers(a.stdout, a.stderr),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
		kong.Configuration(kong.JSON, a.configPaths...),
		kong.Vars{
			"version":              internal.VersionString(),
			"containerd_address":   runtime.DefaultAddress,
			"containerd_namespace": runtime.DefaultNamespace,
			"snapshotter":          runtime.DefaultSnapshotter,
		},
		kong.Bind(a),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: %s\n", internal.Name, err)
		return exitFailure
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: error: %s\n", internal.Name, err)
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			printUsage(parseErr.Context, a.stderr)
		}
		return exitUsage
	}

	configureLogger(a.root, a.stderr)

	if err := kctx.Run(); err != nil {
		slog.Error(err.Error())
		return exitFailure
	}
	return exitSuccess
}

// Configures the global logger based on CLI flags and linker defaults.
func configureLogger(root *RootCmd, w io.Writer) {
	v := internal.DefaultVerbosity().Or(internal.Verbosity{
		Quiet:   root.Quiet,
		Debug:   root.Debug,
		Verbose: root.Verbose,
	})

	// Validated by kong.
	format, _ := logging.ParseFormat(root.LogFormat)

	level := new(slog.LevelVar)
	level.Set(logging.Level(v.Quiet, v.Debug))

	slog.SetDefault(logging.New(w, level, format, v.Verbose).With("app", internal.Name))
}

// Prints usage text to w.
func printUsage(kctx *kong.Context, w io.Writer) {
	if kctx == nil {
		return
	}
	stdout := kctx.Stdout
	kctx.Stdout = w
	kctx.PrintUsage(false)
	kctx.Stdout = stdout
}
