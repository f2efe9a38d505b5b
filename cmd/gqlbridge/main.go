// Command gqlbridge runs relational statements against a GQL document store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gqlbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
