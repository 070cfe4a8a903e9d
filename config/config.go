// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

// Package config loads the hostbridge configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
	"github.com/we-are-mono/hostbridge/bridge"
	"github.com/we-are-mono/hostbridge/bridge/logger"
)

const (
	defaultConfigBasePath = "/etc/hostbridge"
	fileName              = "bridge.json"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validFormats = map[string]bool{"json": true, "text": true}
	validOutputs = map[string]bool{"console": true, "file": true, "journald": true, "sqlite": true}
)

// Config is the contents of bridge.json.
type Config struct {
	Enabled        bool          `json:"enabled"`
	Port           int           `json:"port"`
	ReadTimeoutMS  int           `json:"read_timeout_ms"`
	WriteTimeoutMS int           `json:"write_timeout_ms"`
	Logging        LoggingConfig `json:"logging"`
	Plugins        []string      `json:"plugins,omitempty"`
	PluginDirs     []string      `json:"plugin_dirs,omitempty"`
}

// LoggingConfig selects the log level, format and backends.
type LoggingConfig struct {
	Level      string   `json:"level"`
	Format     string   `json:"format"`
	Outputs    []string `json:"outputs"`
	File       string   `json:"file,omitempty"`
	Database   string   `json:"database,omitempty"`
	MaxEntries int      `json:"max_entries,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Enabled: true,
		Port:    bridge.DefaultPort,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Outputs:    []string{"console"},
			File:       "/var/log/hostbridge.log",
			Database:   "/var/lib/hostbridge/logs.db",
			MaxEntries: 10000,
		},
	}
}

// GetConfigDir returns the configuration directory path.
// Checks HOSTBRIDGE_CONFIG_DIR, falls back to /etc/hostbridge
func GetConfigDir() string {
	if dir := os.Getenv("HOSTBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigBasePath
}

// Path returns the full path of bridge.json.
func Path() string {
	return filepath.Join(GetConfigDir(), fileName)
}

// Load reads bridge.json from the config directory, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := parseInto(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config at %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes JSONC data over the defaults. Comments and trailing commas
// are allowed. Environment overrides are not applied.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := parseInto(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInto(data []byte, cfg *Config) error {
	// ToJSON blanks comments in place, so offsets still match the input.
	stripped := jsonc.ToJSON(data)
	if err := json.Unmarshal(stripped, cfg); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col := getLineCol(data, syntaxErr.Offset)
			return fmt.Errorf("JSON syntax error at line %d, column %d: %w", line, col, err)
		}
		return err
	}
	return nil
}

// getLineCol calculates the line and column number for a byte offset
func getLineCol(data []byte, offset int64) (line, col int) {
	line = 1
	col = 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOSTBRIDGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: HOSTBRIDGE_PORT %q is not a number", ErrInvalidConfig, v)
		}
		c.Port = port
	}
	if v := os.Getenv("HOSTBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.ReadTimeoutMS < 0 {
		return fmt.Errorf("%w: read_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if c.WriteTimeoutMS < 0 {
		return fmt.Errorf("%w: write_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	for _, out := range c.Logging.Outputs {
		if !validOutputs[out] {
			return fmt.Errorf("%w: unknown log output %q", ErrInvalidConfig, out)
		}
		if out == "file" && c.Logging.File == "" {
			return fmt.Errorf("%w: file output needs logging.file", ErrInvalidConfig)
		}
		if out == "sqlite" && c.Logging.Database == "" {
			return fmt.Errorf("%w: sqlite output needs logging.database", ErrInvalidConfig)
		}
	}
	return nil
}

// ReadTimeout returns read_timeout_ms as a duration. Zero means none.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns write_timeout_ms as a duration. Zero means none.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// Save writes cfg to path atomically, keeping a timestamped backup of any
// existing file.
func Save(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}
