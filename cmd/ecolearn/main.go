// Package main is the single-binary entrypoint for EcoLearn.
package main

import "github.com/ecolearn/ecolearn/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
