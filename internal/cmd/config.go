package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"maestro/internal/config"
)

// ConfigCmd groups configuration commands
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Print the effective configuration"`
	Init ConfigInitCmd `cmd:"" help:"Write a default config.yaml if none exists"`
}

// ConfigShowCmd prints the effective configuration as YAML
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(cli *CLI) error {
	data, err := yaml.Marshal(cli.Container.Config)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// ConfigInitCmd writes a default configuration file
type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing config file" short:"f"`
}

// Run executes the config init command
func (c *ConfigInitCmd) Run(cli *CLI) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")
	if !c.Force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := config.Write(config.Default(dir)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
