// Package config resolves the process-level configuration shared by the
// proxy listener and the inspection facade.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the settings every kestrel entry point needs.
type Config struct {
	DB        string `yaml:"db"`
	AppName   string `yaml:"app_name"`
	ProxyPort int    `yaml:"proxy_port"`
	APIPort   int    `yaml:"api_port"`
	WorkDir   string `yaml:"work_dir"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		DB:        "kestrel.db",
		AppName:   "kestrel",
		ProxyPort: 8080,
		APIPort:   8000,
		WorkDir:   ".",
	}
}

// Load resolves configuration by layering, narrowest wins: built-in defaults,
// then an optional kestrel.yaml in the working directory, then environment
// variables. A missing or unparsable config file is not an error: it is
// silently treated as absent, same as the rest of its field values.
func Load() *Config {
	cfg := Default()

	if data, err := os.ReadFile("kestrel.yaml"); err == nil {
		_ = yaml.Unmarshal(data, cfg)
	}

	if v := os.Getenv("KESTREL_DB"); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv("KESTREL_APP_NAME"); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv("KESTREL_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("PROXY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ProxyPort = p
		}
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = p
		}
	}

	return cfg
}
