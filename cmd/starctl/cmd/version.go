package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"starhub/protocol"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print starctl and protocol versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintf(os.Stdout, "starctl %s (protocol v%s)\n", version, protocol.ProtocolVersion)
			return nil
		},
	}
}
