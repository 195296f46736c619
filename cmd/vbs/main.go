// Command vbs is the command-line interface of the retrieval gateway.
package main

import (
	"os"

	"github.com/kilupskalvis/vbs/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
