// Package config loads statshistd's configuration from a TOML file (teacher's
// naoina/toml) and lets cmd/statshistd override individual fields with CLI
// flags (teacher's gopkg.in/urfave/cli.v1), in the same loadConfig/
// dumpConfig shape cmd/geth uses.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
)

// Config is the full process configuration.
type Config struct {
	Database  Database
	Upstream  Upstream
	Metrics   Metrics
	PollKinds map[string]time.Duration `toml:"-"`
}

// Database configures the *sql.DB pool statshistd opens against MySQL.
type Database struct {
	Host         string
	Port         int
	User         string
	Password     string
	Schema       string
	MaxOpenConns int
}

// DSN renders the go-sql-driver/mysql data source name for this Database.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Schema)
}

// Upstream configures the game server's stats API.
type Upstream struct {
	BaseURL string
}

// Metrics configures the /metrics HTTP endpoint.
type Metrics struct {
	ListenAddr string
}

// rawConfig is the TOML file's shape. Its poll_interval_seconds table (one
// whole number of seconds per kind) is converted into Config.PollKinds by
// Load.
type rawConfig struct {
	Database            Database
	Upstream            Upstream
	Metrics             Metrics
	PollIntervalSeconds map[string]int `toml:"poll_interval_seconds"`
}

// Load reads and validates a TOML config file from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := Config{
		Database: raw.Database,
		Upstream: raw.Upstream,
		Metrics:  raw.Metrics,
		PollKinds: make(map[string]time.Duration, len(raw.PollIntervalSeconds)),
	}
	for kind, seconds := range raw.PollIntervalSeconds {
		cfg.PollKinds[kind] = time.Duration(seconds) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the input-validation class of errors this layer owns
// (distinct from internal/snapshot's own ValidationError, §10.3): an
// incomplete DSN or a non-positive pool size/poll interval.
func (c Config) Validate() error {
	if c.Database.Host == "" || c.Database.Schema == "" || c.Database.User == "" {
		return fmt.Errorf("config: database host, schema and user are required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("config: database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("config: upstream base URL is required")
	}
	for kind, interval := range c.PollKinds {
		if interval <= 0 {
			return fmt.Errorf("config: poll interval for %s must be positive, got %v", kind, interval)
		}
	}
	return nil
}
