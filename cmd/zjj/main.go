// Command zjj coordinates concurrent jj workspaces: session registry, TTL
// locks, merge queue dispatch, and workspace integrity checks for agents
// working the same repository in parallel.
package main

import (
	"os"
	"runtime/debug"

	"github.com/dotcommander/zjj/internal/commands"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	err := commands.Execute(version)
	os.Exit(commands.ExitCodeFor(commands.Unwrap(err)))
}
