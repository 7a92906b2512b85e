// Command marcshift converts MARC records between raw and canonical form.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/marcshift/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
