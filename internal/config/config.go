package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/exercises"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/performance"
	"github.com/claude/liftlog/internal/rpe"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Gravitus  GravitusConfig  `yaml:"gravitus"`
	Tables    TablesConfig    `yaml:"tables"`
	Units     UnitsConfig     `yaml:"units"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Migrations string `yaml:"migrations"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// GravitusConfig controls the scraper.
type GravitusConfig struct {
	BaseURL        string        `yaml:"base_url"`
	User           string        `yaml:"user"`
	Workers        int           `yaml:"workers"`
	Attempts       int           `yaml:"attempts"`
	Backoff        time.Duration `yaml:"backoff"`
	PageDelay      time.Duration `yaml:"page_delay"`
	OutDir         string        `yaml:"out_dir"`
	StateDir       string        `yaml:"state_dir"`
	NormalizeNames bool          `yaml:"normalize_names"`
}

// TablesConfig points at replacement lookup tables. Empty paths use the
// built-in tables.
type TablesConfig struct {
	RPE     string `yaml:"rpe"`
	Renames string `yaml:"renames"`
}

// UnitsConfig declares which sources record loads in pounds and the unit
// series are reported in.
type UnitsConfig struct {
	PoundSources []string `yaml:"pound_sources"`
	Display      string   `yaml:"display"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// RPETable loads the configured RPE table.
func (t TablesConfig) RPETable() (*rpe.Table, error) {
	if t.RPE == "" {
		return rpe.Default(), nil
	}
	return rpe.LoadFile(t.RPE)
}

// Renamer loads the configured exercise rename rules.
func (t TablesConfig) Renamer() (*exercises.Renamer, error) {
	if t.Renames == "" {
		return exercises.Default(), nil
	}
	return exercises.LoadFile(t.Renames)
}

// Policy returns the per-workout pounds-to-kilograms decision.
func (u UnitsConfig) Policy() performance.UnitPolicy {
	sources := make([]models.Source, len(u.PoundSources))
	for i, s := range u.PoundSources {
		sources[i] = models.Source(s)
	}
	return performance.BySource(sources...)
}

// Imperial reports whether series should be shown in pounds.
func (u UnitsConfig) Imperial() bool {
	return u.Display == "lb"
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Migrations: "migrations"},
		Tailscale: TailscaleConfig{
			Hostname: "liftlog",
			StateDir: "tsnet-state",
		},
		Gravitus: GravitusConfig{
			Workers:   12,
			Attempts:  3,
			Backoff:   time.Second,
			PageDelay: 4 * time.Second,
			OutDir:    "data",
		},
		Units: UnitsConfig{
			PoundSources: []string{string(models.SourceGravitus)},
			Display:      "kg",
		},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix LIFTLOG_ and
// underscore-separated paths:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT,
//	LIFTLOG_DB_HOST, LIFTLOG_DB_PORT, LIFTLOG_DB_NAME,
//	LIFTLOG_DB_USER, LIFTLOG_DB_PASSWORD, LIFTLOG_DB_SSLMODE,
//	LIFTLOG_AUTH_API_KEY,
//	LIFTLOG_TAILSCALE_ENABLED, LIFTLOG_TAILSCALE_HOSTNAME,
//	LIFTLOG_GRAVITUS_USER, LIFTLOG_GRAVITUS_BASE_URL, LIFTLOG_GRAVITUS_WORKERS,
//	LIFTLOG_TABLES_RPE, LIFTLOG_TABLES_RENAMES,
//	LIFTLOG_UNITS_POUND_SOURCES (comma separated), LIFTLOG_UNITS_DISPLAY
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadClient is Load for tools that never open the database: the file is
// optional and only the scraper, table and unit settings are validated.
func LoadClient(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validateClient(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFTLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIFTLOG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIFTLOG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("LIFTLOG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("LIFTLOG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("LIFTLOG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("LIFTLOG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("LIFTLOG_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("LIFTLOG_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("LIFTLOG_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("LIFTLOG_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("LIFTLOG_GRAVITUS_USER"); v != "" {
		cfg.Gravitus.User = v
	}
	if v := os.Getenv("LIFTLOG_GRAVITUS_BASE_URL"); v != "" {
		cfg.Gravitus.BaseURL = v
	}
	if v := os.Getenv("LIFTLOG_GRAVITUS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gravitus.Workers = n
		}
	}
	if v := os.Getenv("LIFTLOG_TABLES_RPE"); v != "" {
		cfg.Tables.RPE = v
	}
	if v := os.Getenv("LIFTLOG_TABLES_RENAMES"); v != "" {
		cfg.Tables.Renames = v
	}
	if v, ok := os.LookupEnv("LIFTLOG_UNITS_POUND_SOURCES"); ok {
		cfg.Units.PoundSources = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Units.PoundSources = append(cfg.Units.PoundSources, s)
			}
		}
	}
	if v := os.Getenv("LIFTLOG_UNITS_DISPLAY"); v != "" {
		cfg.Units.Display = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return c.validateClient()
}

func (c *Config) validateClient() error {
	if c.Gravitus.Workers < 1 {
		return fmt.Errorf("gravitus.workers must be at least 1")
	}
	for _, s := range c.Units.PoundSources {
		if !models.Source(s).Valid() {
			return fmt.Errorf("units.pound_sources: unknown source %q", s)
		}
	}
	if c.Units.Display != "kg" && c.Units.Display != "lb" {
		return fmt.Errorf("units.display must be kg or lb, got %q", c.Units.Display)
	}
	return nil
}
