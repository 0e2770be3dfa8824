// Package config handles reading and writing ~/.maestro/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version  int            `yaml:"version"`
	Agent    AgentConfig    `yaml:"agent"`
	Git      GitConfig      `yaml:"git"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// AgentConfig controls how the agent CLI is spawned.
type AgentConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	Model          string   `yaml:"model"`
	TerminateGrace int      `yaml:"terminate_grace"` // seconds before forced kill
}

// GitConfig controls worktree placement and branch handling.
type GitConfig struct {
	WorktreeBase string `yaml:"worktree_base"`
	MainBranch   string `yaml:"main_branch"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// StorageConfig controls the session database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// PipelineConfig controls live output delivery.
type PipelineConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"` // records buffered per live subscriber
}

const configDirName = ".maestro"
const configFileName = "config.yaml"

// Dir returns the maestro home directory (~/.maestro), creating nothing.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName), nil
}

// Load reads config.yaml from the maestro home directory, falling back to
// defaults when the file does not exist. A malformed file is an error.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(dir), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default(dir)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults(dir)
	return cfg, nil
}

// Write writes cfg to config.yaml in the maestro home directory.
func Write(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, configFileName), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config populated with sensible defaults rooted at the
// given maestro home directory.
func Default(dir string) *Config {
	return &Config{
		Version: 1,
		Agent: AgentConfig{
			Command:        "claude",
			Args:           []string{"--output-format", "stream-json"},
			Model:          "sonnet",
			TerminateGrace: 10,
		},
		Git: GitConfig{
			WorktreeBase: filepath.Join(dir, "worktrees"),
			MainBranch:   "main",
			BranchPrefix: "maestro/",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dir, "maestro.db"),
		},
		Pipeline: PipelineConfig{
			SubscriberBuffer: 256,
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults(dir string) {
	def := Default(dir)
	if c.Agent.Command == "" {
		c.Agent.Command = def.Agent.Command
	}
	if c.Agent.TerminateGrace <= 0 {
		c.Agent.TerminateGrace = def.Agent.TerminateGrace
	}
	if c.Git.WorktreeBase == "" {
		c.Git.WorktreeBase = def.Git.WorktreeBase
	}
	if c.Git.MainBranch == "" {
		c.Git.MainBranch = def.Git.MainBranch
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if c.Pipeline.SubscriberBuffer <= 0 {
		c.Pipeline.SubscriberBuffer = def.Pipeline.SubscriberBuffer
	}
}
