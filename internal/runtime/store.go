package runtime

import (
	"context"
	"fmt"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/samber/lo"
)

// Containerd services the image operations run against.
type store interface {

	// Content store holding layer, config, manifest and index blobs.
	ContentStore() content.Store

	// Image records mapping names to root descriptors.
	ImageService() images.Store

	// Attaches a fresh content lease to ctx. Blobs written under the returned
	// context are kept until done is called.
	WithLease(ctx context.Context) (context.Context, func(context.Context) error, error)

	// Returns the IDs of containers created from the named image.
	ImageContainers(ctx context.Context, name string) ([]string, error)

	// Stops any task of the container and deletes it with its snapshot.
	DeleteContainer(ctx context.Context, id string) error

	// Unpacks the layers of the named image matching platform into the
	// snapshotter.
	Unpack(ctx context.Context, name string, platform platforms.MatchComparer, snapshotter string) error

	// Releases the connection.
	Close() error
}

// Store backed by a containerd daemon.
type clientStore struct {
	*containerd.Client
}

func (s clientStore) WithLease(ctx context.Context) (context.Context, func(context.Context) error, error) {
	return s.Client.WithLease(ctx)
}

func (s clientStore) ImageContainers(ctx context.Context, name string) ([]string, error) {
	ctrs, err := s.Containers(ctx, fmt.Sprintf("image==%q", name))
	if err != nil {
		return nil, err
	}
	return lo.Map(ctrs, func(c containerd.Container, _ int) string { return c.ID() }), nil
}

func (s clientStore) DeleteContainer(ctx context.Context, id string) error {
	ctr, err := s.LoadContainer(ctx, id)
	if err != nil {
		return err
	}

	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}

	return ctr.Delete(ctx, containerd.WithSnapshotCleanup)
}

func (s clientStore) Unpack(ctx context.Context, name string, platform platforms.MatchComparer, snapshotter string) error {
	img, err := s.ImageService().Get(ctx, name)
	if err != nil {
		return err
	}
	return containerd.NewImageWithPlatform(s.Client, img, platform).Unpack(ctx, snapshotter)
}
