// Package config loads the gateway configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/foogate/store"
)

type Config struct {
	Server Server `yaml:"server"`
	Store  Store  `yaml:"store"`
	Log    Log    `yaml:"log"`
}

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Store struct {
	// Backend is one of "mongo", "sqlite" or "memory".
	Backend    string        `yaml:"backend"`
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	DataDir    string        `yaml:"dataDir"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Host:            "127.0.0.1",
			Port:            8000,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Backend:    "mongo",
			URI:        "mongodb://localhost:27017",
			Database:   "foos_and_things",
			Collection: "foos",
			DataDir:    "./data",
			Timeout:    10 * time.Second,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HOST", &c.Server.Host)
	str("STORE_BACKEND", &c.Store.Backend)
	str("MONGO_URI", &c.Store.URI)
	str("MONGO_DATABASE", &c.Store.Database)
	str("MONGO_COLLECTION", &c.Store.Collection)
	str("DATA_DIR", &c.Store.DataDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v, ok := lookup("STORE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STORE_TIMEOUT: %w", err)
		}
		c.Store.Timeout = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "mongo", "sqlite", "memory":
	default:
		return fmt.Errorf("store.backend: unknown backend %q (supported: mongo, sqlite, memory)", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		return errors.New("store.collection: must not be empty")
	}
	if c.Store.Backend == "mongo" && (c.Store.URI == "" || c.Store.Database == "") {
		return errors.New("store: mongo backend needs uri and database")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StoreOptions converts the store section for store.New.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Backend:    c.Store.Backend,
		URI:        c.Store.URI,
		Database:   c.Store.Database,
		Collection: c.Store.Collection,
		DataDir:    c.Store.DataDir,
		Timeout:    c.Store.Timeout,
	}
}
