// Package config loads the judge CLI settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8085"
	// A synchronous run answers only after every case, so the default is generous.
	DefaultTimeout = 2 * time.Minute

	// BaseURLEnv overrides the file's baseURL.
	BaseURLEnv = "JUDGE_CLI_BASE_URL"
)

// Config holds CLI configuration.
type Config struct {
	BaseURL    string        `yaml:"baseURL"`
	Timeout    time.Duration `yaml:"timeout"`
	PrettyJSON *bool         `yaml:"prettyJSON"`
}

// Load reads path, applies JUDGE_CLI_BASE_URL and fills defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read cli config %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse cli config %s: %w", path, err)
		}
	}
	if v := os.Getenv(BaseURLEnv); v != "" {
		cfg.BaseURL = v
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PrettyJSON == nil {
		pretty := true
		c.PrettyJSON = &pretty
	}
	return c
}
