/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ssargent/jsonlbuf/pkg/compress"
	"github.com/ssargent/jsonlbuf/pkg/record"
	"gopkg.in/yaml.v3"
)

// Config represents the jsonlbuf configuration
type Config struct {
	Format  Format  `yaml:"format"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Format controls how records are encoded
type Format struct {
	Compression          compress.Type     `yaml:"compression"`
	Flattening           record.Flattening `yaml:"flattening"`
	StrictReservedFields bool              `yaml:"strict_reserved_fields"`
}

// Storage contains local storage locations
type Storage struct {
	BufferDir       string `yaml:"buffer_dir"`
	SegmentDir      string `yaml:"segment_dir"`
	WriteBufferSize int    `yaml:"write_buffer_size"`
}

// Server contains REST API configuration
type Server struct {
	Port         int    `yaml:"port"`
	Bind         string `yaml:"bind"`
	APIKey       string `yaml:"api_key"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Format: Format{
			Compression: compress.Default,
			Flattening:  record.NoFlattening,
		},
		Storage: Storage{
			BufferDir:       "./data/buffers",
			SegmentDir:      "./data/segments",
			WriteBufferSize: 64 << 10,
		},
		Server: Server{
			Port:         8080,
			Bind:         "127.0.0.1",
			APIKey:       "auto",
			MaxBodyBytes: 64 << 20,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values the tool cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive"))
	}
	if c.Storage.SegmentDir == "" {
		errs = append(errs, fmt.Errorf("storage.segment_dir is required"))
	}
	if c.Storage.WriteBufferSize < 0 {
		errs = append(errs, fmt.Errorf("storage.write_buffer_size must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration rooted at dataDir with a
// generated API key and saves it
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Storage.BufferDir = filepath.Join(dataDir, "buffers")
		config.Storage.SegmentDir = filepath.Join(dataDir, "segments")
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	// Save the configuration
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	// Use OS-specific default locations
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./jsonlbuf.yaml"
	}

	// For Linux/macOS, use ~/.config/jsonlbuf/config.yaml
	configDir := filepath.Join(homeDir, ".config", "jsonlbuf")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
