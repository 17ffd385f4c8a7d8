// Package config loads chatwindow settings from defaults, the config file and
// CHATWINDOW_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dirName = ".chatwindow"

// DefaultConfigDir returns the configuration directory (~/.chatwindow).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func defaultFile(name string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// DefaultConfigPath returns ~/.chatwindow/config.yaml.
func DefaultConfigPath() (string, error) {
	return defaultFile("config.yaml")
}

// DefaultDataPath returns ~/.chatwindow/data.db.
func DefaultDataPath() (string, error) {
	return defaultFile("data.db")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
