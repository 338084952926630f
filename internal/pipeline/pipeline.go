package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/cruciblehq/eosimg/internal/image"
)

// Image operations the pipeline drives. Each call blocks until the runtime
// reports the outcome.
type Runtime interface {

	// Imports a filesystem archive as a single-layer image named ref.
	Import(ctx context.Context, archive string, ref image.Ref) error

	// Builds ref from the descriptor, resolving its base reference with args.
	Build(ctx context.Context, d *descriptor.Descriptor, args map[string]string, ref image.Ref) error

	// Removes the image named ref. With force, the image is removed even
	// when containers still reference it.
	RemoveImage(ctx context.Context, ref image.Ref, force bool) error
}

// Configures a [Pipeline].
type Options struct {
	Runtime    Runtime                // Runtime that stores the images.
	Descriptor *descriptor.Descriptor // Build configuration for the final image.
	Namer      Namer                  // Intermediate name generator. Defaults to [TimestampNamer].
	Observer   func(from, to State)   // Called on every state transition. Optional.
}

// Outcome of a pipeline run.
type Result struct {
	Intermediate image.Ref // Imported base image.
	Final        image.Ref // Built image. Zero when the build did not succeed.
	State        State     // Terminal state reached.
}

// Single-shot archive-to-image conversion.
type Pipeline struct {
	rt       Runtime
	desc     *descriptor.Descriptor
	namer    Namer
	observer func(from, to State)
	state    State
}

// Creates a pipeline in the [Idle] state.
func New(opts Options) *Pipeline {
	namer := opts.Namer
	if namer == nil {
		namer = TimestampNamer{}
	}
	return &Pipeline{
		rt:       opts.Runtime,
		desc:     opts.Descriptor,
		namer:    namer,
		observer: opts.Observer,
	}
}

// Returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// Converts archive into the final image tagged tag.
//
// Arguments are validated before the runtime is touched; invalid arguments
// return [ErrUsage] and leave the pipeline [Idle]. Otherwise the pipeline
// imports, builds and cleans up in order and stops at the first failure,
// returning an error wrapping [ErrImport], [ErrBuild] or [ErrCleanup]. The
// result is returned alongside stage failures so the caller can see which
// images exist. A pipeline runs at most once. A pipeline created without a
// runtime or descriptor fails with [ErrMisconfigured] and stays [Idle].
func (p *Pipeline) Run(ctx context.Context, archive, tag string) (*Result, error) {
	if p.state != Idle {
		return nil, ErrPipelineUsed
	}

	if p.rt == nil {
		return nil, fmt.Errorf("%w: no runtime", ErrMisconfigured)
	}
	if p.desc == nil {
		return nil, fmt.Errorf("%w: no descriptor", ErrMisconfigured)
	}

	if archive == "" {
		return nil, fmt.Errorf("%w: archive path is required", ErrUsage)
	}

	final, err := image.NewRef(p.desc.Name, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	started := time.Now()
	result := &Result{}

	p.transition(Importing)
	base, err := p.importArchive(ctx, archive, tag)
	if err != nil {
		return p.fail(result, err)
	}
	result.Intermediate = base

	p.transition(Building)
	if err := p.build(ctx, base, final); err != nil {
		return p.fail(result, err)
	}
	result.Final = final

	p.transition(CleaningUp)
	if err := p.cleanup(ctx, base); err != nil {
		return p.fail(result, err)
	}

	p.transition(Succeeded)
	result.State = p.state

	slog.Info("image ready", "image", final.String(), "elapsed", time.Since(started).Round(time.Millisecond))
	return result, nil
}

// Imports the archive under a freshly generated intermediate name.
//
// The archive must be a readable regular file; its contents are not
// inspected. Nothing is sent to the runtime when the check fails.
func (p *Pipeline) importArchive(ctx context.Context, archive, tag string) (image.Ref, error) {
	info, err := checkArchive(archive)
	if err != nil {
		return image.Ref{}, fmt.Errorf("%w: %w", ErrImport, err)
	}

	ref, err := image.NewRef(p.namer.Name(p.desc.Intermediate), tag)
	if err != nil {
		return image.Ref{}, fmt.Errorf("%w: %w", ErrImport, err)
	}

	slog.Info("importing archive",
		"archive", archive,
		"size", datasize.ByteSize(info.Size()).HR(),
		"image", ref.String(),
	)

	if err := p.rt.Import(ctx, archive, ref); err != nil {
		return image.Ref{}, fmt.Errorf("%w: %s: %w", ErrImport, ref, err)
	}

	return ref, nil
}

// Builds the final image on top of base.
func (p *Pipeline) build(ctx context.Context, base, final image.Ref) error {
	args := p.desc.BuildArgs(base)

	slog.Info("building image", "base", base.String(), "image", final.String())

	if err := p.rt.Build(ctx, p.desc, args, final); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuild, final, err)
	}
	return nil
}

// Force-removes the intermediate image.
func (p *Pipeline) cleanup(ctx context.Context, base image.Ref) error {
	slog.Info("removing intermediate image", "image", base.String())

	if err := p.rt.RemoveImage(ctx, base, true); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCleanup, base, err)
	}
	return nil
}

// Moves the pipeline to [Failed] and returns the result with err.
func (p *Pipeline) fail(result *Result, err error) (*Result, error) {
	slog.Debug("pipeline failed", "state", p.state, "error", err)
	p.transition(Failed)
	result.State = p.state
	return result, err
}

// Moves the pipeline to next, notifying the observer.
//
// Panics on a transition the state machine does not allow, which would be a
// programming error in this package.
func (p *Pipeline) transition(next State) {
	prev := p.state
	if !prev.CanTransition(next) {
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", prev, next))
	}
	p.state = next
	slog.Debug("pipeline state", "from", prev, "to", next)
	if p.observer != nil {
		p.observer(prev, next)
	}
}

// Verifies that the archive is a readable regular file.
func checkArchive(path string) (os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	return info, nil
}
