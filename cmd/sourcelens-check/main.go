// Package main is a thin smoke-test harness around pkg/core: it loads
// config, wires an App, runs an index+search+health round trip against
// a given directory, and exits. It is not the MCP tool dispatcher —
// that transport stays external per the core's design.
package main

import (
	"os"

	"github.com/sourcelens/sourcelens/cmd/sourcelens-check/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
