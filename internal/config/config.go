// Package config provides repository configuration management for rung,
// backed by a human-editable TOML file under .git/rung/.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultBackupRetention is how many backups are kept before pruning
const DefaultBackupRetention = 10

// Config represents the repository configuration stored in .git/rung/config.toml
type Config struct {
	// BaseBranch is the branch the bottom of every stack builds on
	BaseBranch string `toml:"base_branch"`

	// Remote is the remote used for divergence checks
	Remote string `toml:"remote"`

	// BackupRetention is the number of backups kept after successful operations
	BackupRetention int `toml:"backup_retention"`
}

// Default returns a config with default values
func Default() *Config {
	return &Config{
		BaseBranch:      "main",
		Remote:          "origin",
		BackupRetention: DefaultBackupRetention,
	}
}

func configPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".git", "rung", "config.toml")
}

// Load reads the repository configuration. A missing file yields defaults;
// a malformed file is an error so hand edits are never silently ignored.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = DefaultBackupRetention
	}

	return cfg, nil
}

// Save writes the configuration to .git/rung/config.toml
func Save(repoRoot string, cfg *Config) error {
	path := configPath(repoRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	defer os.Remove(f.Name())

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return os.Rename(f.Name(), path)
}
