package app

import (
	"fmt"
	"os"

	coreconfig "github.com/m3rciful/edubot/core/config"
	coredatabase "github.com/m3rciful/edubot/core/database"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration: the core sections plus the
// database block the collaborator directories need.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("app: database.host is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("app: database.name is required")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	return &cfg, nil
}
