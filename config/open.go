package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"

	"github.com/xingh/glue"
	"github.com/xingh/glue/drivers/cache/redis"
	"github.com/xingh/glue/drivers/db"
	"github.com/xingh/glue/drivers/db/mysql"
	"github.com/xingh/glue/drivers/db/postgres"
	"github.com/xingh/glue/drivers/db/sqlite"
	driversSchema "github.com/xingh/glue/drivers/schema"
)

// ProviderSet builds a *glue.Provider from a *Config.
var ProviderSet = wire.NewSet(
	NewLogger,
	NewDialect,
	NewDB,
	NewBus,
	NewProvider,
)

// NewLogger returns a text logger on stderr at the configured level.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewDialect returns the dialect of the configured driver.
func NewDialect(cfg *Config) (glue.Dialect, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return sqlite.Dialect{}, nil
	case DriverMySQL:
		return mysql.Dialect{}, nil
	case DriverPostgres:
		return postgres.Dialect{}, nil
	}
	return nil, fmt.Errorf("%w: unknown driver %q", glue.ErrConfiguration, cfg.Driver)
}

// NewDB opens the configured database. The cleanup function closes it.
func NewDB(ctx context.Context, cfg *Config, logger *slog.Logger) (*sqlx.DB, func(), error) {
	pool := db.Pool{
		MaxOpenConns:    cfg.Pool.MaxOpenConns,
		MaxIdleConns:    cfg.Pool.MaxIdleConns,
		ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
	}
	var (
		conn *sqlx.DB
		err  error
	)
	switch cfg.Driver {
	case DriverSQLite:
		conn, err = sqlite.Open(ctx, cfg.DSN, sqlite.Options{Driver: cfg.SQLDriver, Pool: pool, Logger: logger})
	case DriverMySQL:
		conn, err = mysql.Open(ctx, cfg.DSN, mysql.Options{Pool: pool, Logger: logger})
	case DriverPostgres:
		conn, err = postgres.Open(ctx, cfg.DSN, postgres.Options{Driver: cfg.SQLDriver, Pool: pool, Logger: logger})
	default:
		err = fmt.Errorf("%w: unknown driver %q", glue.ErrConfiguration, cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			logger.Error("closing database failed", "error", err)
		}
	}
	return conn, cleanup, nil
}

// NewBus connects the redis invalidation bus when redis.addr is set, and returns a nil
// bus otherwise.
func NewBus(cfg *Config, logger *slog.Logger) (glue.InvalidationBus, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	bus, err := redis.NewBus(nil, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Error("closing invalidation bus failed", "error", err)
		}
	}
	return bus, cleanup, nil
}

// NewProvider builds the provider. The database is owned by NewDB's cleanup.
func NewProvider(cfg *Config, conn *sqlx.DB, dialect glue.Dialect, bus glue.InvalidationBus, logger *slog.Logger) (*glue.Provider, error) {
	opts := []glue.Option{glue.WithLogger(logger), glue.WithDebug(cfg.Debug)}
	if bus != nil {
		opts = append(opts, glue.WithBus(bus))
	}
	return glue.New(conn, dialect, opts...)
}

// Open builds a provider from cfg without code generation. The returned cleanup closes
// the bus and the database.
func Open(ctx context.Context, cfg *Config) (*glue.Provider, func(), error) {
	logger := NewLogger(cfg)
	dialect, err := NewDialect(cfg)
	if err != nil {
		return nil, nil, err
	}
	conn, closeDB, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	bus, closeBus, err := NewBus(cfg, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	p, err := NewProvider(cfg, conn, dialect, bus, logger)
	if err != nil {
		closeBus()
		closeDB()
		return nil, nil, err
	}
	return p, func() {
		closeBus()
		closeDB()
	}, nil
}

// NewIntrospector returns the schema introspector matching the provider's dialect.
func NewIntrospector(p *glue.Provider) (driversSchema.Introspector, error) {
	switch p.Dialect().Name() {
	case DriverSQLite:
		return &sqlite.Introspector{DB: p.DB()}, nil
	case DriverMySQL:
		return &mysql.Introspector{DB: p.DB()}, nil
	case DriverPostgres:
		return &postgres.Introspector{DB: p.DB()}, nil
	}
	return nil, fmt.Errorf("%w: no introspector for dialect %q", glue.ErrConfiguration, p.Dialect().Name())
}
