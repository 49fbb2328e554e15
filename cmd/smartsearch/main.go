// Package main is the entry point for the smartsearch CLI.
package main

import (
	"os"

	"github.com/runger/smartsearch/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
