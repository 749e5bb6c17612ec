// Package config provides configuration management with CLI > env > file precedence.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	virtus "github.com/virtus-ai/virtus-go"
)

// Config holds all configuration options for the virtus CLI.
type Config struct {
	APIKey        string   `yaml:"api-key"`
	BaseURL       string   `yaml:"base-url"`
	Model         string   `yaml:"model"`
	MaxTokens     int      `yaml:"max-tokens"`
	Temperature   float64  `yaml:"temperature"`
	Stream        bool     `yaml:"stream"`
	NoRAG         bool     `yaml:"no-rag"`
	System        string   `yaml:"system"`
	DataSourceIDs []string `yaml:"data-sources"`
	WatchDir      string   `yaml:"watch-dir"`
	WatchSource   string   `yaml:"watch-source"`
}

// DefaultConfig returns a Config with sensible defaults. MaxTokens and
// Temperature stay zero so the platform applies each model's own defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: virtus.DefaultBaseURL,
		Stream:  true,
	}
}

// Load builds a Config by merging CLI flags, environment variables, and config files.
// Precedence: CLI args > env vars > config files (cwd then $HOME).
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Load config files (lowest precedence first, then overwrite).
	if home, err := os.UserHomeDir(); err == nil {
		_ = cfg.loadYAML(filepath.Join(home, ".virtus.yml"))
	}
	_ = cfg.loadYAML(".virtus.yml")

	// Load .env files.
	_ = godotenv.Load()

	// Apply env vars.
	cfg.applyEnv()

	// Parse CLI flags (highest precedence).
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VIRTUS_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("VIRTUS_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("VIRTUS_MODEL"); v != "" {
		c.Model = v
	}
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("virtus", flag.ContinueOnError)
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "Virtus API key")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "API base URL")
	fs.StringVar(&c.Model, "model", c.Model, "Model id or slug to chat with")
	fs.IntVar(&c.MaxTokens, "max-tokens", c.MaxTokens, "Maximum reply tokens (0 = model default)")
	fs.Float64Var(&c.Temperature, "temperature", c.Temperature, "Sampling temperature (0 = model default)")
	fs.BoolVar(&c.Stream, "stream", c.Stream, "Stream replies as they generate")
	fs.BoolVar(&c.NoRAG, "no-rag", c.NoRAG, "Disable retrieval over data sources")
	fs.StringVar(&c.System, "system", c.System, "System prompt prepended to every conversation")
	fs.StringSliceVar(&c.DataSourceIDs, "data-source", c.DataSourceIDs, "Data source id to retrieve from (repeatable)")
	fs.StringVar(&c.WatchDir, "watch", c.WatchDir, "Watch a directory and upload new documents instead of chatting")
	fs.StringVar(&c.WatchSource, "watch-source", c.WatchSource, "Data source receiving watched uploads")
	return fs.Parse(args)
}
