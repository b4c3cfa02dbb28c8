// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `json:"host" yaml:"host"`
		Port int    `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`

	Repository struct {
		Root string `json:"root" yaml:"root"`
	} `json:"repository" yaml:"repository"`

	Cache struct {
		Size int `json:"size" yaml:"size"` // object LRU entries
	} `json:"cache" yaml:"cache"`

	Compression Compression `json:"compression" yaml:"compression"`

	Merge struct {
		SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	} `json:"merge" yaml:"merge"`

	Tracker struct {
		Ignore []string `json:"ignore" yaml:"ignore"`
		Watch  bool     `json:"watch" yaml:"watch"`
	} `json:"tracker" yaml:"tracker"`

	Author   string `json:"author" yaml:"author"`
	LogLevel string `json:"log_level" yaml:"log_level"` // debug, info, warn, error
}

type Compression struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Level   int  `json:"level" yaml:"level"`       // 1=fastest, 4=best
	MinSize int  `json:"min_size" yaml:"min_size"` // bytes
}

func Default() *Config {
	var c Config
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 7420
	c.Repository.Root = "."
	c.Cache.Size = 1000
	c.Compression = Compression{Enabled: false, Level: 2, MinSize: 1024}
	c.Merge.SimilarityThreshold = 0.5
	c.LogLevel = "info"
	return &c
}

// FromEnv loads the file named by VCS_CONFIG, or returns defaults when unset.
func FromEnv() (*Config, error) {
	path := os.Getenv("VCS_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes a JSON or YAML file on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if t := c.Merge.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("merge.similarity_threshold must be within [0,1], got %v", t)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive")
	}
	return nil
}
