// Package main provides the gtfsprep CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/gtfsprep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
