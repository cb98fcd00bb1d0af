// Command afdstat reports output (host) transfer statistics from the
// memory mapped statistics store.
package main

import (
	"fmt"
	"os"

	"github.com/afdtools/afdstats/stat/query"
)

var version = "dev" // overridden at build time

func main() {
	cmd := query.NewCommand("afdstat", false)
	cmd.Version = version
	if err := cmd.Run(os.Args[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "afdstat: %v\n", err)
		os.Exit(1)
	}
}
