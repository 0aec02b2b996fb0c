// Package config loads the optional pyvm.yaml interpreter configuration
// file: additional module search directories and a trace toggle, read
// once at CLI startup. Absence of the file is not an error.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the decoded shape of pyvm.yaml. Every field's zero value
// gives the default unconfigured behavior: no extra search directories,
// tracing off.
type Config struct {
	SearchPath []string `yaml:"search_path"`
	Trace      bool     `yaml:"trace"`
}

// Load reads pyvm.yaml from dir, returning a zero-value Config (not an
// error) if the file doesn't exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "pyvm.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
