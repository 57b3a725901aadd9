// Package config loads the daemon configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is missing or partial.
const (
	DefaultListenAddr   = ":8080"
	DefaultDatabasePath = "finnexus.db"
	DefaultRedirectURL  = "http://localhost:8080/auth/callback"
)

// Config is the daemon configuration.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DatabasePath string `yaml:"database_path"`

	// RedirectURL is where finance servers send the OAuth callback.
	RedirectURL string `yaml:"redirect_url"`

	// AdminPassword protects the admin routes with HTTP basic auth when
	// set. Overridable via FINNEXUS_ADMIN_PASSWORD.
	AdminPassword string `yaml:"admin_password"`
}

// Load reads the config file at path. A missing file yields defaults so the
// daemon is runnable without any setup.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:   DefaultListenAddr,
		DatabasePath: DefaultDatabasePath,
		RedirectURL:  DefaultRedirectURL,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = DefaultRedirectURL
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FINNEXUS_ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("FINNEXUS_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}
