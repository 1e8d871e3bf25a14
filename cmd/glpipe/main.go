// Package main provides the glpipe CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/dakota-labs/glpipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
