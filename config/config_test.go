package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingh/glue"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
dsn: file:test.db
debug: true
pool:
  max_open_conns: 4
  conn_max_lifetime: 2m
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Pool.MaxOpenConns)
	assert.Equal(t, 2*time.Minute, cfg.Pool.ConnMaxLifetime)
	assert.Equal(t, "glue:invalidate", cfg.Redis.Channel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "dsn: file:a.db\nlog_level: info\n")
	t.Setenv("GLUE_DSN", "file:b.db")
	t.Setenv("GLUE_LOG_LEVEL", "debug")
	t.Setenv("GLUE_POOL__MAX_IDLE_CONNS", "3")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "file:b.db", cfg.DSN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Pool.MaxIdleConns)
}

func TestLoad_ChangedFlagsWin(t *testing.T) {
	path := writeConfig(t, "dsn: file:a.db\n")
	t.Setenv("GLUE_DSN", "file:b.db")

	flags := pflag.NewFlagSet("glue", pflag.ContinueOnError)
	flags.String("dsn", "", "")
	flags.String("sql-driver", "", "")
	flags.String("redis-addr", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--dsn", "file:c.db", "--sql-driver", "sqlite", "--redis-addr", "localhost:6379"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "file:c.db", cfg.DSN)
	assert.Equal(t, "sqlite", cfg.SQLDriver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.LogLevel, "unset flags leave the value alone")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing dsn", "driver: sqlite\n"},
		{"unknown driver", "driver: oracle\ndsn: x\n"},
		{"driver mismatch", "driver: postgres\nsql_driver: sqlite3\ndsn: x\n"},
		{"bad log level", "dsn: x\nlog_level: loud\n"},
		{"negative pool", "dsn: x\npool:\n  max_open_conns: -1\n"},
		{"redis without channel", "dsn: x\nredis:\n  addr: localhost:6379\n  channel: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			assert.ErrorIs(t, err, glue.ErrConfiguration)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &Config{
		Driver:   DriverSQLite,
		DSN:      "file:" + filepath.Join(t.TempDir(), "open.db"),
		LogLevel: "error",
	}
	p, cleanup, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "sqlite", p.Dialect().Name())

	intro, err := NewIntrospector(p)
	require.NoError(t, err)
	info, err := intro.TableInfo(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestNewDialect_Unknown(t *testing.T) {
	_, err := NewDialect(&Config{Driver: "oracle"})
	assert.ErrorIs(t, err, glue.ErrConfiguration)

	for _, name := range []string{DriverSQLite, DriverMySQL, DriverPostgres} {
		d, err := NewDialect(&Config{Driver: name})
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
}

func TestNewBus_DisabledWithoutAddr(t *testing.T) {
	bus, cleanup, err := NewBus(&Config{}, NewLogger(&Config{}))
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, bus)
}
