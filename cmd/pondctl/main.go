// Package main is the entry point for the pondctl CLI tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/pondview/cmd/pondctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
