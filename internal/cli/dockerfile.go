package cli

import (
	"github.com/cruciblehq/eosimg/internal/descriptor"
)

// Represents the 'eosimg dockerfile' command.
type DockerfileCmd struct{}

// Prints the Dockerfile rendered from the bundled descriptor. It is the
// build the docker runtime submits and the one the containerd runtime
// reproduces.
func (c *DockerfileCmd) Run(a *app) error {
	d, err := descriptor.Default()
	if err != nil {
		return err
	}

	out, err := d.Dockerfile()
	if err != nil {
		return err
	}

	_, err = a.stdout.Write(out)
	return err
}
