// Command star runs the Star Protocol Hub server.
package main

import (
	"fmt"
	"os"

	"starhub/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "star:", err)
		os.Exit(1)
	}
}
