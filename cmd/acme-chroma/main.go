// Command acme-chroma highlights acme windows with chroma and publishes the
// result to the acme-styles compositor.
package main

import (
	"fmt"
	"os"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := newRootCmd(newApp())
	root.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
