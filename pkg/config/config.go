// Package config loads curator settings.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, $XDG_CONFIG_HOME/curator/config.toml unless --config says otherwise
//  3. CURATOR_* environment variables, e.g. CURATOR_REGISTRY_URL or
//     CURATOR_CACHE_BACKEND
//
// A missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/matzehuels/curator/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CURATOR"

const appName = "curator"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config is the complete curator configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry" envconfig:"REGISTRY"`
	Search   SearchConfig   `toml:"search" envconfig:"SEARCH"`
	Import   ImportConfig   `toml:"import" envconfig:"IMPORT"`
	Cache    CacheConfig    `toml:"cache" envconfig:"CACHE"`
	Server   ServerConfig   `toml:"server" envconfig:"SERVER"`
}

// RegistryConfig controls how the npm registry is reached.
type RegistryConfig struct {
	// URL is the registry root. Any npm-compatible mirror works.
	URL string `toml:"url" envconfig:"URL"`

	// Timeout bounds each registry request. A timed-out fetch is a failed fetch.
	Timeout time.Duration `toml:"timeout" envconfig:"TIMEOUT"`

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64 `toml:"requests_per_second" envconfig:"RPS"`

	// Retries is the number of extra attempts for 5xx and transport errors.
	Retries int `toml:"retries" envconfig:"RETRIES"`
}

// SearchConfig controls interactive search.
type SearchConfig struct {
	Debounce time.Duration `toml:"debounce" envconfig:"DEBOUNCE"`
	Size     int           `toml:"size" envconfig:"SIZE"`
}

// ImportConfig controls manifest import.
type ImportConfig struct {
	Concurrency int  `toml:"concurrency" envconfig:"CONCURRENCY"`
	IncludeDev  bool `toml:"include_dev" envconfig:"INCLUDE_DEV"`
}

// CacheConfig selects and configures the response cache.
type CacheConfig struct {
	Backend       string        `toml:"backend" envconfig:"BACKEND"`
	TTL           time.Duration `toml:"ttl" envconfig:"TTL"`
	Dir           string        `toml:"dir" envconfig:"DIR"`
	Prefix        string        `toml:"prefix" envconfig:"PREFIX"` // key prefix for a shared redis/mongo
	RedisAddr     string        `toml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `toml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `toml:"redis_db" envconfig:"REDIS_DB"`
	MongoURI      string        `toml:"mongo_uri" envconfig:"MONGO_URI"`
	MongoDatabase string        `toml:"mongo_database" envconfig:"MONGO_DATABASE"`
}

// ServerConfig controls `curator serve`.
type ServerConfig struct {
	Addr string `toml:"addr" envconfig:"ADDR"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			URL:     "https://registry.npmjs.org",
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			Debounce: 500 * time.Millisecond,
			Size:     10,
		},
		Import: ImportConfig{
			Concurrency: 8,
		},
		Cache: CacheConfig{
			Backend:       BackendFile,
			TTL:           24 * time.Hour,
			RedisAddr:     "localhost:6379",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: appName,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the file at path (the default path if empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads the TOML file at path over the defaults.
// If the file doesn't exist, it returns the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := errors.ValidateURL(c.Registry.URL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "registry.url")
	}
	switch {
	case c.Registry.Timeout <= 0:
		return invalid("registry.timeout must be positive")
	case c.Registry.RequestsPerSecond < 0:
		return invalid("registry.requests_per_second must not be negative")
	case c.Registry.Retries < 0:
		return invalid("registry.retries must not be negative")
	case c.Search.Debounce < 0:
		return invalid("search.debounce must not be negative")
	case c.Search.Size < 1 || c.Search.Size > 10:
		return invalid("search.size must be between 1 and 10")
	case c.Import.Concurrency < 1:
		return invalid("import.concurrency must be at least 1")
	case c.Cache.TTL < 0:
		return invalid("cache.ttl must not be negative")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendMongo, BackendNone:
	default:
		return invalid(fmt.Sprintf("cache.backend %q is not one of file, redis, mongo, none", c.Cache.Backend))
	}
	return nil
}

func invalid(msg string) error {
	return errors.New(errors.ErrCodeInvalidConfig, "%s", msg)
}

// Save writes c to path as TOML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// Path returns the default config file path using the XDG standard
// (~/.config/curator/config.toml).
func Path() string {
	return filepath.Join(dir("XDG_CONFIG_HOME", ".config"), "config.toml")
}

// CacheDir returns the default file cache directory (~/.cache/curator).
func CacheDir() string {
	return dir("XDG_CACHE_HOME", ".cache")
}

// CacheDirOf returns the configured cache directory, or the default.
func (c *Config) CacheDirOf() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return CacheDir()
}

func dir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, fallback, appName)
}
