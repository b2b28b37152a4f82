// Package config handles loading and parsing application configuration.
// Values are resolved in this order (later sources win):
//  1. env-default struct tags (development-only defaults)
//  2. A YAML file:              CONFIG_PATH=/path/to/config.yaml or --config
//  3. Environment variables     (a .env file in the working directory is
//     loaded into the environment first, if present)
//
// The parsed values are returned as a *Config pointer so the struct is
// shared by reference rather than copied everywhere.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Development defaults. They are fine for a laptop and nothing else;
// UsesDevDefaults reports whether any of them survived loading.
const (
	DefaultSessionSecret = "supersecretkey"
	DefaultAdminUser     = "admin"
	DefaultAdminPass     = "admin123"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"events.db"`

	HTTPServer `yaml:"http_server"`
	Session    `yaml:"session"`
	Admin      `yaml:"admin"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	// When empty it is derived from Port.
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR"`
	Port int    `yaml:"port" env:"PORT" env-default:"5000"`
}

// Session configures the signed cookie that carries the admin flag.
type Session struct {
	Secret string `yaml:"secret" env:"SESSION_SECRET" env-default:"supersecretkey"`
	// MaxAge is the cookie lifetime in seconds.
	MaxAge int `yaml:"max_age" env:"SESSION_MAX_AGE" env-default:"86400"`
}

// Admin is the single static credential pair checked at /admin/login.
type Admin struct {
	User     string `yaml:"user" env:"ADMIN_USER" env-default:"admin"`
	Password string `yaml:"password" env:"ADMIN_PASS" env-default:"admin123"`
}

// ListenAddr returns the address the HTTP server should bind.
func (c *Config) ListenAddr() string {
	if c.HTTPServer.Addr != "" {
		return c.HTTPServer.Addr
	}
	return fmt.Sprintf(":%d", c.HTTPServer.Port)
}

// UsesDevDefaults reports whether a secret or credential is still set to
// its development default.
func (c *Config) UsesDevDefaults() bool {
	return c.Session.Secret == DefaultSessionSecret ||
		c.Admin.User == DefaultAdminUser ||
		c.Admin.Password == DefaultAdminPass
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Env {
	case "dev", "staging", "prod":
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}
	if c.StoragePath == "" {
		return errors.New("config: storage_path is required")
	}
	if c.HTTPServer.Addr == "" && (c.HTTPServer.Port <= 0 || c.HTTPServer.Port > 65535) {
		return fmt.Errorf("config: invalid port %d", c.HTTPServer.Port)
	}
	if len(c.Session.Secret) == 0 {
		return errors.New("config: session secret is required")
	}
	if c.Admin.User == "" || c.Admin.Password == "" {
		return errors.New("config: admin credentials are required")
	}
	return nil
}

// Load reads the configuration from configPath (YAML) when non-empty, or
// from the environment alone otherwise.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad reads, validates, and returns the application config.
// Functions prefixed with "Must" are allowed to fatal on failure: if this
// returns, the config is valid.
func MustLoad() *Config {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("cannot load .env: %s", err.Error())
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}
