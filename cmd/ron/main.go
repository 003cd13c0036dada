// Command ron runs the assistant from the terminal or as a service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lewisedginton/ron/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
