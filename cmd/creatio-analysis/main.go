// Package main is the entry point for the creatio-analysis CLI.
package main

import (
	"os"

	"github.com/adk-sentryskin/creatio-analysis/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
