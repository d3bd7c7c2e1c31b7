// Command casematch is the entry point for the case retrieval engine.
// It provides a CLI interface (via Cobra) and the HTTP server exposing the
// retrieval API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/casematch-go/cmd/casematch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
