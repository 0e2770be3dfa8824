package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"maestro/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Sessions  SessionsCmd  `cmd:"sessions" help:"Manage agent sessions (add, list, send, replay, ...)"`
	Git       GitCmd       `cmd:"git" help:"Git operations on session worktrees (rebase, squash, restore)"`
	Worktrees WorktreesCmd `cmd:"worktrees" help:"List session worktrees and flag orphans"`
	Config    ConfigCmd    `cmd:"config" help:"Show or initialize the maestro configuration"`

	// Internal fields (not flags)
	Container *Container `kong:"-"`
}

// AfterApply initializes logging after CLI parsing and wires the
// dependency container.
func (c *CLI) AfterApply() error {
	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Set environment variables AFTER initialization so agent child
	// processes inherit debug settings and append to the same file.
	if c.Debug || c.DebugFile != "" {
		os.Setenv("MAESTRO_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("MAESTRO_DEBUG_FILE", logFilePath)
		}
	}

	container, err := NewContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}
