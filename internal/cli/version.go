package cli

import (
	"fmt"

	"github.com/cruciblehq/eosimg/internal"
)

// Represents the 'eosimg version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintln(a.stdout, internal.VersionString())
	return nil
}
