// Command civic is the entry point for the council information assistant.
// It exposes ingestion, retrieval, routing and chat through a Cobra CLI and
// an optional HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/civic-go/cmd/civic/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
