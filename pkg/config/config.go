// Package config holds the CLI and server configuration. The engine
// itself takes explicit constructor arguments; this package only feeds
// the outer layers (cmd/kitedb, pkg/server, pkg/repl).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree, loadable from YAML.
//
// Example kitedb.yaml:
//
//	data_dir: ./databases
//	listen: 127.0.0.1:7600
//	log_level: info
//	storage:
//	  page_size: 4096
//	  buffer_capacity: 100
type Config struct {
	// DataDir is the directory holding <name>.db database files.
	DataDir string `yaml:"data_dir"`

	// Listen is the TCP address of the line server.
	Listen string `yaml:"listen"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig configures every database the process opens.
type StorageConfig struct {
	PageSize       uint32 `yaml:"page_size"`
	BufferCapacity int    `yaml:"buffer_capacity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./databases",
		Listen:   "127.0.0.1:7600",
		LogLevel: "info",
		Storage: StorageConfig{
			PageSize:       4096,
			BufferCapacity: 100,
		},
	}
}

// Load reads a YAML config file over the defaults: fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.Storage.PageSize < 64 {
		return fmt.Errorf("config: page_size %d is below the 64-byte minimum", c.Storage.PageSize)
	}
	if c.Storage.BufferCapacity < 1 {
		return fmt.Errorf("config: buffer_capacity must be at least 1")
	}
	return nil
}
