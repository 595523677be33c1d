// Package main provides the entry point for the vulnscout CLI.
package main

import (
	"os"

	"github.com/vulnscout/vulnscout/cmd/vulnscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
