package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"maestro/internal/cmd"
)

// Build information injected at build time via ldflags
// Example: -ldflags="-X main.Version=v1.0.0 -X main.Commit=abc123 ..."
var (
	Commit  = "unknown"
	Date    = "unknown"
	Version = "dev"
)

// Tagline is the application's tagline used in help text
const Tagline = "Maestro runs coding agents in parallel git worktrees"

// versionInfo returns formatted version information for CLI display
func versionInfo() string {
	return fmt.Sprintf("maestro %s (commit: %s, built: %s)", Version, Commit, Date)
}

func main() {
	// Parse CLI arguments with Kong
	// Container is created in CLI.AfterApply() after logging is initialized
	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("maestro"),
		kong.Description(Tagline),
		kong.Vars{
			"version": versionInfo(),
		},
		kong.UsageOnError(),
		kong.Bind(&cli),
	)
	defer cli.Close()

	// Execute the selected command
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
