package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/c2h5oh/datasize"
	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/cruciblehq/eosimg/internal/image"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Default containerd socket address.
	DefaultAddress = "/run/containerd/containerd.sock"

	// Default containerd namespace. Shared with nerdctl so converted images
	// are visible to it without extra flags.
	DefaultNamespace = "default"

	// Default snapshotter used when unpacking the final image.
	DefaultSnapshotter = "overlayfs"
)

// Holds runtime configuration.
type Config struct {
	Address     string // Containerd socket address. Empty uses [DefaultAddress].
	Namespace   string // Containerd namespace. Empty uses [DefaultNamespace].
	Snapshotter string // Snapshotter for unpacking. Empty uses [DefaultSnapshotter].
	Platform    string // Platform of imported images (e.g., "linux/amd64"). Empty uses the host.
	Unpack      bool   // Whether to unpack the final image into the snapshotter.
}

// Implements the image operations against containerd.
type Runtime struct {
	store       store  // Containerd services.
	snapshotter string // Snapshotter used when unpacking.
	platform    string // Normalized OCI platform of imported images.
	unpack      bool   // Whether built images are unpacked.
}

// Creates a runtime connected to containerd.
//
// The namespace scopes all containerd operations to a single tenant. The
// runtime must be closed when no longer needed.
func New(cfg Config) (*Runtime, error) {
	rt, err := newRuntime(cfg)
	if err != nil {
		return nil, err
	}

	address := cfg.Address
	if address == "" {
		address = DefaultAddress
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	rt.store = clientStore{client}

	return rt, nil
}

// Creates a runtime without a store, applying defaults and validating the
// platform.
func newRuntime(cfg Config) (*Runtime, error) {
	snapshotter := cfg.Snapshotter
	if snapshotter == "" {
		snapshotter = DefaultSnapshotter
	}

	platform := cfg.Platform
	if platform == "" {
		platform = defaultPlatform()
	}
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	return &Runtime{
		snapshotter: snapshotter,
		platform:    platforms.Format(p),
		unpack:      cfg.Unpack,
	}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.store.Close()
}

// Imports a root filesystem archive as a single-layer image.
//
// The archive may be an uncompressed, gzip, zstd or bzip2 tarball. Its
// contents are written as one gzip layer under a new config describing the
// runtime's platform, and the image is tagged ref. An existing image with
// the same name is replaced.
func (rt *Runtime) Import(ctx context.Context, archive string, ref image.Ref) error {
	ctx, done, err := rt.store.WithLease(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer done(context.Background())

	name := ref.Normalized()

	layer, err := rt.importLayer(ctx, archive, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	now := time.Now().UTC()
	config := ocispec.Image{
		Created:  &now,
		Platform: ocispec.Platform{OS: p.OS, Architecture: p.Architecture, Variant: p.Variant},
		RootFS: ocispec.RootFS{
			Type:    "layers",
			DiffIDs: []digest.Digest{layer.diffID},
		},
		History: []ocispec.History{{
			Created:   &now,
			CreatedBy: "import " + filepath.Base(archive),
		}},
	}

	manifest := newManifest(layer.desc)
	target, err := rt.writeManifest(ctx, ocispec.MediaTypeImageManifest, manifest, config, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, name, target); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image imported",
		"image", name,
		"layer", layer.desc.Digest,
		"size", datasize.ByteSize(layer.desc.Size).HR(),
	)
	return nil
}

// Builds an image from a descriptor and tags it ref.
//
// The descriptor's base reference is resolved with args and looked up in
// the image store. For multi-platform bases the manifest matching the
// runtime's platform is used and the result is a single-entry index. The
// base image record is never modified. An existing image named ref is
// replaced.
func (rt *Runtime) Build(ctx context.Context, d *descriptor.Descriptor, args map[string]string, ref image.Ref) error {
	base, err := d.BaseRef(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	baseName := base.Normalized()
	name := ref.Normalized()

	ctx, done, err := rt.store.WithLease(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	defer done(context.Background())

	img, err := rt.store.ImageService().Get(ctx, baseName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, baseName)
		}
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	target, index, manifestIdx, err := rt.resolveManifestDescriptor(ctx, img.Target, baseName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	manifest, err := rt.readManifest(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	now := time.Now().UTC()
	layer, err := rt.overlayLayer(ctx, d, layerMediaType(target.MediaType), name, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	applyDescriptor(&config, d, layer.diffID, now)
	manifest.Layers = append(manifest.Layers, layer.desc)

	newManifestDesc, err := rt.writeManifest(ctx, target.MediaType, manifest, config, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	newTarget, err := rt.buildImageTarget(ctx, img.Target, index, manifestIdx, newManifestDesc, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, name, newTarget); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if rt.unpack {
		if err := rt.unpackImage(ctx, name); err != nil {
			return fmt.Errorf("%w: %w", ErrRuntime, err)
		}
	}

	slog.Debug("image built", "image", name, "base", baseName, "layers", len(manifest.Layers))
	return nil
}

// Removes an image.
//
// Containers created from the image block removal unless force is set, in
// which case each container's task is killed and the container and its
// snapshot are deleted first. Removing an image that does not exist is an
// error.
func (rt *Runtime) RemoveImage(ctx context.Context, ref image.Ref, force bool) error {
	name := ref.Normalized()
	is := rt.store.ImageService()

	if _, err := is.Get(ctx, name); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, name)
		}
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	ids, err := rt.store.ImageContainers(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if len(ids) > 0 && !force {
		return fmt.Errorf("%w: %s is used by %d container(s)", ErrImageInUse, name, len(ids))
	}

	for _, id := range ids {
		if err := rt.store.DeleteContainer(ctx, id); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %w", ErrRuntime, err)
		}
		slog.Debug("container removed", "id", id, "image", name)
	}

	if err := is.Delete(ctx, name, images.SynchronousDelete()); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, name)
		}
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Debug("image removed", "image", name)
	return nil
}

// Points the image record name at target.
//
// Creates the record, or updates its target when it already exists.
func (rt *Runtime) tagImage(ctx context.Context, name string, target ocispec.Descriptor) error {
	is := rt.store.ImageService()

	img := images.Image{
		Name:   name,
		Target: target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	return nil
}

// Unpacks the image layers for the runtime's platform into the snapshotter.
func (rt *Runtime) unpackImage(ctx context.Context, name string) error {
	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return err
	}

	slog.Debug("unpacking image", "image", name, "snapshotter", rt.snapshotter)
	return rt.store.Unpack(ctx, name, platforms.Only(p), rt.snapshotter)
}

// Opens the archive and writes its decompressed contents as a layer blob.
func (rt *Runtime) importLayer(ctx context.Context, archive, name string) (layerBlob, error) {
	f, err := os.Open(archive)
	if err != nil {
		return layerBlob{}, err
	}
	defer f.Close()

	rootfs, err := decompress(f)
	if err != nil {
		return layerBlob{}, err
	}
	defer rootfs.Close()

	return rt.writeLayer(ctx, rootfs, ocispec.MediaTypeImageLayerGzip, name+"-rootfs")
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
