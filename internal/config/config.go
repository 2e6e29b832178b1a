// Package config loads graphsql settings from an optional YAML file.
//
//	entities: ./entities          # CUE entity declarations
//	database: ./graphsql.db       # SQLite graph-key store
//	postgres_dsn: ""              # Postgres graph-key store, wins over database
//	secret: "7.3"                 # graph_cipher secret, shift[.scramble]
//	listen: ":8080"
//	cache:
//	  driver: memory              # memory | file | pebble
//	  path: ./graph_sql_key.json  # file or pebble directory
//	  ttl: 1h
//
// GRAPHSQL_SECRET, when set, replaces the file's secret.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SecretEnv names the environment variable that overrides Config.Secret.
const SecretEnv = "GRAPHSQL_SECRET"

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheFile   = "file"
	CachePebble = "pebble"
)

// Config holds every setting the CLI and server need.
type Config struct {
	Entities    string      `yaml:"entities"`
	Database    string      `yaml:"database"`
	PostgresDSN string      `yaml:"postgres_dsn,omitempty"`
	Secret      string      `yaml:"secret,omitempty"`
	Listen      string      `yaml:"listen"`
	Cache       CacheConfig `yaml:"cache"`
}

// CacheConfig selects the resolver cache backend.
type CacheConfig struct {
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path,omitempty"`
	TTL    time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Entities: "entities",
		Database: "graphsql.db",
		Listen:   ":8080",
		Cache: CacheConfig{
			Driver: CacheMemory,
			TTL:    time.Hour,
		},
	}
}

// Load reads path over Default and applies the environment override.
// An empty path loads only defaults and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if secret, ok := os.LookupEnv(SecretEnv); ok {
		cfg.Secret = secret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals data into cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for unusable values.
func (c Config) Validate() error {
	var errs []error
	switch c.Cache.Driver {
	case CacheMemory:
	case CacheFile, CachePebble:
		if c.Cache.Path == "" {
			errs = append(errs, fmt.Errorf("cache.path is required for driver %q", c.Cache.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.driver %q: must be memory, file or pebble", c.Cache.Driver))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if c.Database == "" && c.PostgresDSN == "" {
		errs = append(errs, errors.New("one of database or postgres_dsn is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
