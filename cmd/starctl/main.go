// Command starctl is the operator CLI for the Star Protocol hub: smoke
// testing a running deployment and inspecting protocol constants.
package main

import (
	"fmt"
	"os"

	"starhub/cmd/starctl/cmd"
)

var version = "dev"

func main() {
	if err := cmd.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "starctl:", err)
		os.Exit(1)
	}
}
