// Package main provides the entry point for the kioku CLI.
package main

import (
	"os"

	"github.com/kioku-dev/kioku/cmd/kioku/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
