package cli

import (
	"io"

	"github.com/cruciblehq/eosimg/internal/docker"
	"github.com/cruciblehq/eosimg/internal/pipeline"
	"github.com/cruciblehq/eosimg/internal/runtime"
)

// Opens the runtime selected by the flags. The returned function releases
// it. Engine progress, when the runtime reports any, goes to stdout.
type runtimeOpener func(root *RootCmd, stdout io.Writer) (pipeline.Runtime, func() error, error)

var (
	_ pipeline.Runtime = (*runtime.Runtime)(nil)
	_ pipeline.Runtime = (*docker.Runtime)(nil)
)

func openRuntime(root *RootCmd, stdout io.Writer) (pipeline.Runtime, func() error, error) {
	if root.Runtime == "docker" {
		rt, err := docker.New(docker.Config{
			Host:   root.DockerHost,
			Output: stdout,
		})
		if err != nil {
			return nil, nil, err
		}
		return rt, func() error { return nil }, nil
	}

	rt, err := runtime.New(runtime.Config{
		Address:     root.ContainerdAddress,
		Namespace:   root.ContainerdNamespace,
		Snapshotter: root.Snapshotter,
		Platform:    root.Platform,
		Unpack:      root.Unpack,
	})
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}
