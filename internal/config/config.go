// Package config loads runchat settings from defaults, an optional TOML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/burpheart/runchat/pkg/types"
)

// Environment variables read by Load.
const (
	EnvRunAPIURL     = "INKEEP_RUN_API_URL"
	EnvPublicRunURL  = "NEXT_PUBLIC_INKEEP_AGENTS_RUN_API_URL"
	EnvAPIKey        = "INKEEP_API_KEY"
	EnvListen        = "RUNCHAT_LISTEN"
	EnvProxyURL      = "RUNCHAT_PROXY_URL"
	EnvUpstreamProxy = "RUNCHAT_UPSTREAM_PROXY"
)

// DefaultPath returns the per-user config file location,
// e.g. ~/.config/runchat/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "runchat", "config.toml")
}

// Load builds the configuration. A missing file is not an error; a file
// that exists but does not parse is.
func Load(path string) (*types.Config, error) {
	cfg := types.DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv(EnvRunAPIURL); v != "" {
		cfg.UpstreamURL = v
		cfg.HealthURL = v
	} else if v := os.Getenv(EnvPublicRunURL); v != "" {
		// The public variable only ever pointed the health probe.
		cfg.HealthURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv(EnvProxyURL); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv(EnvUpstreamProxy); v != "" {
		cfg.UpstreamProxy = v
	}
}

// Validate checks the URLs in cfg.
func Validate(cfg *types.Config) error {
	if err := checkURL("upstream_url", cfg.UpstreamURL); err != nil {
		return err
	}
	if cfg.HealthURL != "" {
		if err := checkURL("health_url", cfg.HealthURL); err != nil {
			return err
		}
	}
	if cfg.LogLevel < types.LogLevelNone || cfg.LogLevel > types.LogLevelDebug {
		return fmt.Errorf("log_level %d out of range 0-4", cfg.LogLevel)
	}
	return nil
}

func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https: %s", name, raw)
	}
	return nil
}
