package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Creates an OCI manifest holding a single layer. The config descriptor is
// filled in by [Runtime.writeManifest].
func newManifest(layer ocispec.Descriptor) ocispec.Manifest {
	return ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Layers:    []ocispec.Descriptor{layer},
	}
}

// Writes the config and then the manifest referencing it.
//
// The config keeps the media type already recorded in the manifest, or the
// one matching mediaType when the manifest is new. Returns the descriptor of
// the stored manifest blob, which carries GC labels for its config and
// layers.
func (rt *Runtime) writeManifest(ctx context.Context, mediaType string, manifest ocispec.Manifest, config ocispec.Image, name string) (ocispec.Descriptor, error) {
	configType := manifest.Config.MediaType
	if configType == "" {
		configType = configMediaType(mediaType)
	}

	configDesc, err := rt.writeBlob(ctx, configType, config, name+"-config")
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	manifest.Config = configDesc

	return rt.writeBlob(ctx, mediaType, manifest, name+"-manifest", content.WithLabels(manifestGCLabels(manifest)))
}

// Picks the base manifest Build appends the overlay layer to.
//
// A base stored as a plain manifest is used directly. A base stored as an
// index yields the entry for the runtime's platform, or the first entry when
// none matches, together with the index so Build can wrap the new manifest
// the same way. Fails with [ErrEmptyIndex] when the index lists nothing.
func (rt *Runtime) resolveManifestDescriptor(ctx context.Context, root ocispec.Descriptor, name string) (ocispec.Descriptor, *ocispec.Index, int, error) {
	if !images.IsIndexType(root.MediaType) {
		return root, nil, 0, nil
	}

	idx, err := rt.readIndex(ctx, root)
	if err != nil {
		return ocispec.Descriptor{}, nil, 0, err
	}

	p, err := platforms.Parse(rt.platform)
	if err != nil {
		return ocispec.Descriptor{}, nil, 0, err
	}

	i, ok := rt.matchManifest(ctx, idx, platforms.OnlyStrict(p))
	if ok {
		return idx.Manifests[i], &idx, i, nil
	}

	if len(idx.Manifests) == 0 {
		return ocispec.Descriptor{}, nil, 0, fmt.Errorf("%w: %s", ErrEmptyIndex, name)
	}
	return idx.Manifests[0], &idx, 0, nil
}

// Returns the position of the base index entry for the platform.
//
// Entries that declare a platform are matched first. Entries that do not,
// as pulled from some registries, are matched on the platform recorded in
// their image config.
func (rt *Runtime) matchManifest(ctx context.Context, idx ocispec.Index, matcher platforms.MatchComparer) (int, bool) {
	for i, m := range idx.Manifests {
		if m.Platform != nil && matcher.Match(*m.Platform) {
			return i, true
		}
	}
	for i, m := range idx.Manifests {
		if m.Platform != nil || !images.IsManifestType(m.MediaType) {
			continue
		}
		if p, ok := rt.configPlatform(ctx, m); ok && matcher.Match(p) {
			return i, true
		}
	}
	return 0, false
}

// Reads the platform from the image config behind an index entry. False
// when the manifest or config is not in the content store.
func (rt *Runtime) configPlatform(ctx context.Context, desc ocispec.Descriptor) (ocispec.Platform, bool) {
	manifest, err := rt.readManifest(ctx, desc)
	if err != nil {
		return ocispec.Platform{}, false
	}
	config, err := rt.readConfig(ctx, manifest.Config)
	if err != nil {
		return ocispec.Platform{}, false
	}
	return config.Platform, true
}

// Returns the root descriptor the built image is tagged with.
//
// A base stored as a manifest gives the new manifest itself. A base stored
// as an index gives a new index holding only the new manifest, carrying the
// platform of the entry it replaces; other platforms of the base are not
// converted.
func (rt *Runtime) buildImageTarget(ctx context.Context, root ocispec.Descriptor, index *ocispec.Index, manifestIdx int, newManifest ocispec.Descriptor, name string) (ocispec.Descriptor, error) {
	if index == nil {
		return newManifest, nil
	}

	if p := index.Manifests[manifestIdx].Platform; p != nil {
		newManifest.Platform = p
	}

	out := *index
	out.Manifests = []ocispec.Descriptor{newManifest}
	return rt.writeBlob(ctx, root.MediaType, out, name+"-index", content.WithLabels(indexGCLabels(out)))
}

// Loads a manifest from the content store.
func (rt *Runtime) readManifest(ctx context.Context, desc ocispec.Descriptor) (ocispec.Manifest, error) {
	var m ocispec.Manifest
	return m, rt.readJSON(ctx, desc, &m)
}

// Loads an image index from the content store.
func (rt *Runtime) readIndex(ctx context.Context, desc ocispec.Descriptor) (ocispec.Index, error) {
	var idx ocispec.Index
	return idx, rt.readJSON(ctx, desc, &idx)
}

// Loads an image config from the content store.
func (rt *Runtime) readConfig(ctx context.Context, desc ocispec.Descriptor) (ocispec.Image, error) {
	var img ocispec.Image
	return img, rt.readJSON(ctx, desc, &img)
}

// Reads a blob and decodes it into v.
func (rt *Runtime) readJSON(ctx context.Context, desc ocispec.Descriptor, v any) error {
	b, err := content.ReadBlob(ctx, rt.store.ContentStore(), desc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Stores v as a JSON blob of the given media type under the ingest ref.
// Configs, manifests and indexes written by Import and Build go through
// here; opts carry their GC labels.
func (rt *Runtime) writeBlob(ctx context.Context, mediaType string, v any, ref string, opts ...content.Opt) (ocispec.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(b),
		Size:      int64(len(b)),
	}
	if err := content.WriteBlob(ctx, rt.store.ContentStore(), ref, bytes.NewReader(b), desc, opts...); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, nil
}

// Returns the config media type paired with a manifest media type.
func configMediaType(manifestType string) string {
	if manifestType == images.MediaTypeDockerSchema2Manifest {
		return images.MediaTypeDockerSchema2Config
	}
	return ocispec.MediaTypeImageConfig
}

// Returns the gzip layer media type paired with a manifest media type.
//
// Docker schema2 manifests reject OCI layer types in some registries and
// engines, so layers appended to them use the Docker type.
func layerMediaType(manifestType string) string {
	if manifestType == images.MediaTypeDockerSchema2Manifest {
		return images.MediaTypeDockerSchema2LayerGzip
	}
	return ocispec.MediaTypeImageLayerGzip
}

// Labels a manifest blob with references to its config and layers.
//
// The layers of an imported image stay alive after the intermediate image
// is removed because the final manifest references them here.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		key := fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)
		labels[key] = layer.Digest.String()
	}
	return labels
}

// Labels an index blob with references to its manifests.
func indexGCLabels(idx ocispec.Index) map[string]string {
	labels := make(map[string]string, len(idx.Manifests))
	for i, m := range idx.Manifests {
		key := fmt.Sprintf("containerd.io/gc.ref.content.m.%d", i)
		labels[key] = m.Digest.String()
	}
	return labels
}
