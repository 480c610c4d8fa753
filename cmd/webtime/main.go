package main

import (
	"os"

	"github.com/runnerr0/webtime/internal/cli"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// The parser runs with go-flags' Default options, so the error has
	// already been printed.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
