package docker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/cruciblehq/eosimg/internal/image"
	dockerclient "github.com/fsouza/go-dockerclient"
	"github.com/samber/lo"
)

// Holds engine configuration.
type Config struct {
	Host   string    // Engine endpoint (e.g., "unix:///var/run/docker.sock"). Empty uses the DOCKER_* environment.
	Output io.Writer // Receives engine progress. Defaults to stdout.
}

// Drives image operations on a Docker engine.
type Runtime struct {
	client *dockerclient.Client
	output io.Writer
}

// Creates a runtime for the engine at cfg.Host.
//
// No request is made until the first operation.
func New(cfg Config) (*Runtime, error) {
	var (
		client *dockerclient.Client
		err    error
	)
	if cfg.Host != "" {
		client, err = dockerclient.NewClient(cfg.Host)
	} else {
		client, err = dockerclient.NewClientFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocker, err)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Runtime{client: client, output: output}, nil
}

// Imports a root filesystem archive as the image ref.
//
// The archive is streamed to the engine as is; the engine handles any
// compression it recognizes.
func (rt *Runtime) Import(ctx context.Context, archive string, ref image.Ref) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocker, err)
	}
	defer f.Close()

	err = rt.client.ImportImage(dockerclient.ImportImageOptions{
		Repository:   ref.Name,
		Tag:          ref.Tag,
		Source:       "-",
		InputStream:  f,
		OutputStream: rt.output,
		Context:      ctx,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocker, err)
	}

	slog.Debug("image imported", "image", ref.String())
	return nil
}

// Builds ref from the descriptor's Dockerfile with args as build arguments.
//
// The build context holds the rendered Dockerfile and the overlay files at
// their context paths. It is written to the engine as it is produced.
func (rt *Runtime) Build(ctx context.Context, d *descriptor.Descriptor, args map[string]string, ref image.Ref) error {
	dockerfile, err := d.Dockerfile()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocker, err)
	}

	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(writeContext(pw, d, dockerfile, time.Now()))
	}()

	err = rt.client.BuildImage(dockerclient.BuildImageOptions{
		Context:        ctx,
		Name:           ref.String(),
		Dockerfile:     descriptor.DockerfileName,
		BuildArgs:      buildArgs(args),
		InputStream:    pr,
		OutputStream:   rt.output,
		RmTmpContainer: true,
	})
	pr.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocker, err)
	}

	slog.Debug("image built", "image", ref.String())
	return nil
}

// Removes the image ref. With force, containers using it do not block the
// removal.
func (rt *Runtime) RemoveImage(ctx context.Context, ref image.Ref, force bool) error {
	err := rt.client.RemoveImageExtended(ref.String(), dockerclient.RemoveImageOptions{
		Force:   force,
		Context: ctx,
	})
	if err != nil {
		if errors.Is(err, dockerclient.ErrNoSuchImage) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return fmt.Errorf("%w: %w", ErrDocker, err)
	}

	slog.Debug("image removed", "image", ref.String())
	return nil
}

// Writes the build context tar stream to w.
func writeContext(w io.Writer, d *descriptor.Descriptor, dockerfile []byte, modTime time.Time) error {
	tw := tar.NewWriter(w)

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     descriptor.DockerfileName,
		Mode:     0644,
		Size:     int64(len(dockerfile)),
		ModTime:  modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := tw.Write(dockerfile); err != nil {
		return err
	}

	if err := d.WriteFiles(tw, descriptor.ContextPath, modTime); err != nil {
		return err
	}

	return tw.Close()
}

// Converts build arguments to the engine's form, sorted by name.
func buildArgs(args map[string]string) []dockerclient.BuildArg {
	out := lo.MapToSlice(args, func(name, value string) dockerclient.BuildArg {
		return dockerclient.BuildArg{Name: name, Value: value}
	})
	slices.SortFunc(out, func(a, b dockerclient.BuildArg) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
