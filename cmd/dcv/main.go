// Package main is the entry point for the dcv admin CLI.
package main

import (
	"fmt"
	"os"

	"dcvisitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
