// Package config loads glue settings from YAML, environment and command-line flags, and
// builds a Provider from them.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/xingh/glue"
)

// EnvPrefix prefixes environment overrides. A double underscore separates nested keys:
// GLUE_POOL__MAX_OPEN_CONNS sets pool.max_open_conns.
const EnvPrefix = "GLUE_"

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config is the complete glue configuration.
type Config struct {
	Driver    string      `koanf:"driver"`     // sqlite, mysql or postgres
	SQLDriver string      `koanf:"sql_driver"` // database/sql driver override, e.g. "sqlite" for modernc
	DSN       string      `koanf:"dsn"`
	Debug     bool        `koanf:"debug"` // include SQL in error messages
	LogLevel  string      `koanf:"log_level"`
	Pool      PoolConfig  `koanf:"pool"`
	Redis     RedisConfig `koanf:"redis"`
}

// PoolConfig tunes the connection pool; zero values take the driver defaults.
type PoolConfig struct {
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// RedisConfig enables cross-process cache invalidation when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// Defaults are loaded before any other source.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"driver":        DriverSQLite,
		"log_level":     "info",
		"redis.channel": "glue:invalidate",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverMySQL, DriverPostgres)),
		validation.Field(&c.SQLDriver,
			validation.When(c.Driver == DriverSQLite, validation.In("sqlite3", "sqlite")),
			validation.When(c.Driver == DriverPostgres, validation.In("pgx", "postgres")),
			validation.When(c.Driver == DriverMySQL, validation.In("mysql")),
		),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Pool),
		validation.Field(&c.Redis),
	)
}

// Validate checks the pool settings.
func (p PoolConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxOpenConns, validation.Min(0)),
		validation.Field(&p.MaxIdleConns, validation.Min(0)),
		validation.Field(&p.ConnMaxLifetime, validation.Min(time.Duration(0))),
	)
}

// Validate checks the redis settings.
func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Channel, validation.When(r.Addr != "", validation.Required)),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

// Load reads the configuration. Sources, lowest priority first: Defaults, the YAML file
// at path (skipped when path is empty), GLUE_ environment variables, then the flags
// explicitly set in flags (may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// GLUE_REDIS__ADDR -> redis.addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// --sql-driver -> sql_driver, --redis-addr -> redis.addr
			key := strings.ReplaceAll(f.Name, "-", "_")
			if strings.HasPrefix(key, "redis_") || strings.HasPrefix(key, "pool_") {
				key = strings.Replace(key, "_", ".", 1)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", glue.ErrConfiguration, err)
	}
	return &cfg, nil
}
