package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvBot       = "BOT"
	EnvDBPath    = "DB_PATH"
	EnvLogLevel  = "LOG_LEVEL"
	EnvInboxDir  = "INBOX_DIR"
	EnvOutboxDir = "OUTBOX_DIR"
)

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables with a non-empty value win; an exported but empty variable counts as unset,
// the same rule ApplyEnv uses. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	for k, v := range vars {
		if getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with non-empty environment variables. Relative paths from the
// environment resolve against the working directory.
func ApplyEnv(cfg *Config) {
	if v := getenv(EnvBot); v != "" {
		cfg.Bot.Username = v
	}
	if v := getenv(EnvDBPath); v != "" {
		cfg.Storage.DatabasePath = absPath(v)
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getenv(EnvInboxDir); v != "" {
		cfg.Spool.InboxDir = absPath(v)
	}
	if v := getenv(EnvOutboxDir); v != "" {
		cfg.Spool.OutboxDir = absPath(v)
	}
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
