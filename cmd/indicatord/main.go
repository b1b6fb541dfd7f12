// Package main is the entrypoint of the screensaver idle monitor.
package main

import "github.com/termsaver/indicatord/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
