package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/eosimg/internal"
	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/cruciblehq/eosimg/internal/pipeline"
)

// Represents the default 'eosimg <archive> <tag>' command.
type ConvertCmd struct {
	Archive string `arg:"" help:"Vendor root filesystem archive (e.g., cEOS-lab-4.32.0F.tar)." type:"path"`
	Tag     string `arg:"" help:"Tag of the final image (e.g., 4.32.0F)."`
}

// Executes the conversion.
//
// Prints the final image reference on success. On failure a banner and the
// usage text are printed to stderr and the error is returned.
func (c *ConvertCmd) Run(ctx context.Context, a *app, kctx *kong.Context) error {
	err := c.convert(ctx, a)
	if err != nil {
		fmt.Fprintf(a.stderr, "%s: image conversion failed\n", internal.Name)
		printUsage(kctx, a.stderr)
	}
	return err
}

func (c *ConvertCmd) convert(ctx context.Context, a *app) error {
	d, err := descriptor.Default()
	if err != nil {
		return err
	}

	rt, closeRuntime, err := a.open(a.root, a.stdout)
	if err != nil {
		return err
	}
	defer closeRuntime()

	p := pipeline.New(pipeline.Options{
		Runtime:    rt,
		Descriptor: d,
		Namer:      namer(a.root.Naming),
	})

	result, err := p.Run(ctx, c.Archive, c.Tag)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, result.Final.String())
	return nil
}

// Returns the intermediate namer for a naming scheme.
func namer(scheme string) pipeline.Namer {
	if scheme == "uuid" {
		return pipeline.UUIDNamer{}
	}
	return pipeline.TimestampNamer{}
}
