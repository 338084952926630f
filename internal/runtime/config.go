package runtime

import (
	"strings"
	"time"

	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Applies the descriptor to an image config on top of a new layer.
//
// The layer's diff ID is appended to the root filesystem. Environment
// variables are merged over the base image's, ports and volumes are added,
// and the command becomes the descriptor's init invocation with no
// entrypoint. A history entry is recorded only when the base history is
// consistent with its layers, since tools pair the two positionally.
func applyDescriptor(config *ocispec.Image, d *descriptor.Descriptor, diffID digest.Digest, now time.Time) {
	consistent := countLayerHistory(config.History) == len(config.RootFS.DiffIDs)

	config.Created = &now
	config.RootFS.Type = "layers"
	config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, diffID)

	config.Config.Env = mergeEnv(config.Config.Env, d.Environ())
	config.Config.ExposedPorts = mergeSet(config.Config.ExposedPorts, d.PortSet())
	config.Config.Volumes = mergeSet(config.Config.Volumes, d.VolumeSet())
	config.Config.Entrypoint = nil
	config.Config.Cmd = d.Command()

	if consistent {
		config.History = append(config.History, ocispec.History{
			Created:   &now,
			CreatedBy: "eosimg " + d.Name,
		})
	}
}

// Counts history entries that produced a layer.
func countLayerHistory(history []ocispec.History) int {
	n := 0
	for _, h := range history {
		if !h.EmptyLayer {
			n++
		}
	}
	return n
}

// Merges override env vars on top of a base env slice.
//
// Base entries keep their position with overridden values; new keys follow
// in override order.
func mergeEnv(base, overrides []string) []string {
	values := make(map[string]string, len(overrides))
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			values[k] = v
		}
	}

	result := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base)+len(overrides))
	for _, entries := range [][]string{base, overrides} {
		for _, entry := range entries {
			k, _, ok := strings.Cut(entry, "=")
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			if v, override := values[k]; override {
				entry = k + "=" + v
			}
			result = append(result, entry)
		}
	}
	return result
}

// Returns base with the keys of add, allocating base when nil.
func mergeSet(base, add map[string]struct{}) map[string]struct{} {
	if len(add) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]struct{}, len(add))
	}
	for k := range add {
		base[k] = struct{}{}
	}
	return base
}
