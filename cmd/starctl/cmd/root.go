package cmd

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd creates the root cobra command for starctl.
func NewRootCmd(v string) *cobra.Command {
	version = v

	root := &cobra.Command{
		Use:           "starctl",
		Short:         "starctl — operator CLI for the Star Protocol hub",
		Long:          "starctl drives a running Star Protocol hub: smoke testing a deployment and reporting its version.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSmokeCmd())
	root.AddCommand(newVersionCmd())

	return root
}
