// Package config provides configuration loading and structs for the innrelay service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool          `yaml:"debug"`
	LogLevel string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Bot      BotConfig     `yaml:"bot"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Spool    SpoolConfig   `yaml:"spool"`
	Search   SearchConfig  `yaml:"search"`
	Export   ExportConfig  `yaml:"export"`
}

// BotConfig describes the registry bot and how its replies are recognized.
type BotConfig struct {
	// Username is the bot peer (e.g. "@inn_registry_bot"). Required to send commands.
	Username string `yaml:"username"`
	// CommandPrefix is the command whose argument is an INN.
	CommandPrefix string `yaml:"command_prefix" validate:"required"`
	// ResultMarker must appear in an edited message for it to be treated as a final result.
	ResultMarker string `yaml:"result_marker" validate:"required"`
	// FallbackQueryText is logged as the source query for replies nobody asked for.
	FallbackQueryText string `yaml:"fallback_query_text" validate:"required"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// StorageConfig holds paths for the database and the search index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" validate:"required"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// SpoolConfig holds the directories shared with the messaging bridge.
type SpoolConfig struct {
	InboxDir   string   `yaml:"inbox_dir" validate:"required"`
	OutboxDir  string   `yaml:"outbox_dir" validate:"required"`
	Extensions []string `yaml:"extensions"`
	DebounceMS int      `yaml:"debounce_ms" validate:"min=0"`
}

// SearchConfig holds result search settings.
type SearchConfig struct {
	DefaultLimit int     `yaml:"default_limit" validate:"min=1"`
	MaxLimit     int     `yaml:"max_limit" validate:"gtefield=DefaultLimit"`
	NameBoost    float64 `yaml:"name_boost"`
	Fuzzy        bool    `yaml:"fuzzy"`
}

// ExportConfig holds spreadsheet export settings.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the default config with relative paths resolved against baseDir.
// Used when no config file exists.
func Default(baseDir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(baseDir)
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	c.Spool.InboxDir = expandPath(c.Spool.InboxDir, configDir)
	c.Spool.OutboxDir = expandPath(c.Spool.OutboxDir, configDir)
	c.Export.OutputDir = expandPath(c.Export.OutputDir, configDir)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
