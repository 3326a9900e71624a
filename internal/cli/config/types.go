// Package config loads CLI configuration for a dsg project from defaults,
// the project file, a .env file, environment variables and command flags.
package config

import (
	"github.com/leapstack-labs/dsg/pkg/core"
)

// Config file names, in lookup order.
var FileNames = []string{"dsg.yml", "dsg.yaml"}

// EnvPrefix prefixes environment variables read into the configuration.
// A double underscore separates nested keys: DSG_CONNECTION__TYPE sets
// connection.type.
const EnvPrefix = "DSG_"

// Default configuration values.
const (
	DefaultConnectionType = "duckdb"
	DefaultOutput         = "auto"
	DefaultServeHost      = "localhost"
	DefaultServePort      = 8000
)

// Config holds the project configuration plus CLI-only settings.
type Config struct {
	core.ProjectConfig `koanf:",squash"`

	Verbose bool        `koanf:"verbose"`
	NoColor bool        `koanf:"no_color"`
	Output  string      `koanf:"output"`
	Serve   ServeConfig `koanf:"serve"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was loaded.
	File string `koanf:"-"`
}

// ServeConfig holds dev server settings.
type ServeConfig struct {
	Host  string `koanf:"host"`
	Port  int    `koanf:"port"`
	Watch bool   `koanf:"watch"`
}

// Project returns the project configuration for a build.
func (c *Config) Project() *core.ProjectConfig {
	p := c.ProjectConfig
	return &p
}
