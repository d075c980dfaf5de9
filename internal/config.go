package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration. The core only consumes
// these resolved values; loading and env expansion live in pkg/config.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Collection CollectionConfig  `yaml:"collection"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Query      QueryConfig       `yaml:"query"`
	Cache      CacheConfig       `yaml:"cache"`
	Pool       PoolConfig        `yaml:"pool"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Collection.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CollectionConfig holds the markdown collection settings.
type CollectionConfig struct {
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive"`
	Watch     bool   `yaml:"watch"`
}

// Validate validates the collection configuration.
func (c *CollectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// QueryConfig bounds the read-only query surface.
type QueryConfig struct {
	DefaultLimit int           `yaml:"default_limit"`
	MaxLength    int           `yaml:"max_length"`
	MaxJoins     int           `yaml:"max_joins"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate validates the query configuration.
func (c *QueryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultLimit, validation.Min(0), validation.Max(100000)),
		validation.Field(&c.MaxLength, validation.Min(0), validation.Max(1<<20)),
		validation.Field(&c.MaxJoins, validation.Min(0), validation.Max(64)),
	)
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Size, validation.Min(0), validation.Max(100000)),
	)
}

// PoolConfig bounds concurrency.
type PoolConfig struct {
	// QueryWorkers caps simultaneous query executions.
	QueryWorkers int `yaml:"query_workers"`
	// IndexWorkers caps parallel extraction inside one index run.
	IndexWorkers int `yaml:"index_workers"`
}

// Validate validates the pool configuration.
func (c *PoolConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QueryWorkers, validation.Min(0), validation.Max(1024)),
		validation.Field(&c.IndexWorkers, validation.Min(0), validation.Max(256)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Collection: CollectionConfig{
			Path:      "./docs",
			Recursive: true,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Query: QueryConfig{
			DefaultLimit: 1000,
			MaxLength:    4096,
			MaxJoins:     8,
			Timeout:      10 * time.Second,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  5 * time.Minute,
		},
		Pool: PoolConfig{
			QueryWorkers: 16,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
