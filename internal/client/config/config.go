package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the CLI.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080/api/v1/users"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
