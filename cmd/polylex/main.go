// Package main provides the polylex command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/polylex/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
