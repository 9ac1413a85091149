package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the gophauth CLI.
//
// Fields:
//   - ServerURL: scheme, host and port of the HTTP API.
//   - DBFile: local SQLite file where issued tokens are kept.
//   - RequestTimeout: upper bound for a single API call.
type Config struct {
	ServerURL      string
	DBFile         string
	RequestTimeout time.Duration
}

// defaultDBFile places the token store under the user's home directory and
// falls back to the working directory when it is unknown.
func defaultDBFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".gophauth", "client.db")
	}
	return filepath.Join(home, ".gophauth", "client.db")
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBFile = defaultDBFile()
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
