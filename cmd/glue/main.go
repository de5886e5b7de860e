// Command glue inspects a glue configuration and exercises the mapping engine against
// the configured database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xingh/glue"
	"github.com/xingh/glue/config"
)

// app is assembled by initializeApp.
type app struct {
	Provider *glue.Provider
	Logger   *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "glue",
		Short:         "Inspect and exercise the glue object-relational mapper",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	flags.String("driver", "", "database dialect: sqlite, mysql or postgres")
	flags.String("sql-driver", "", "database/sql driver override (sqlite3, sqlite, pgx, postgres)")
	flags.String("dsn", "", "data source name")
	flags.Bool("debug", false, "include SQL in error messages")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("redis-addr", "", "redis address for cache invalidation")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(cfgFile, cmd.Flags())
	}
	root.AddCommand(newConfigCmd(load), newCheckCmd(load), newDemoCmd(load))
	return root
}

type loadFunc func(cmd *cobra.Command) (*config.Config, error)

func newConfigCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Redis.Password != "" {
				cfg.Redis.Password = "******"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func newCheckCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the demo entities against the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			a, cleanup, err := initializeApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := registerModels(a.Provider); err != nil {
				return err
			}
			intro, err := config.NewIntrospector(a.Provider)
			if err != nil {
				return err
			}
			mismatches, err := a.Provider.Verify(cmd.Context(), intro)
			if err != nil {
				return err
			}
			for _, m := range mismatches {
				fmt.Fprintln(cmd.OutOrStdout(), m.String())
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d mapping mismatches", len(mismatches))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mapping matches database")
			return nil
		},
	}
}

func newDemoCmd(load loadFunc) *cobra.Command {
	var listen bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run insert, find, update, many-to-many and delete against the demo tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, cleanup, err := initializeApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if listen {
				if err := a.Provider.Listen(ctx); err != nil {
					return err
				}
			}
			return runDemo(ctx, a, cmd)
		},
	}
	cmd.Flags().BoolVar(&listen, "listen", false, "subscribe to the invalidation bus while running")
	return cmd
}

func registerModels(p *glue.Provider) error {
	return errors.Join(
		p.Register((*Account)(nil)),
		p.Register((*Group)(nil)),
	)
}

func runDemo(ctx context.Context, a *app, cmd *cobra.Command) error {
	p := a.Provider
	out := cmd.OutOrStdout()
	if err := registerModels(p); err != nil {
		return err
	}
	if p.Dialect().Name() == config.DriverSQLite {
		for _, ddl := range sqliteSchema {
			if _, err := p.DB().ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create demo schema: %w", err)
			}
		}
	}

	logEvent := func(_ context.Context, event glue.EventType, entity interface{}, _ interface{}) error {
		fmt.Fprintf(out, "%s %T\n", event, entity)
		return nil
	}
	p.On(glue.EventAfterInsert, logEvent)
	p.On(glue.EventAfterDelete, logEvent)

	alice := &Account{Name: "Alice", Email: "a@x.com", Audit: Audit{CreatedBy: "demo", CreatedAt: time.Now().UTC()}}
	admins := &Group{Title: "admins"}
	err := p.Transact(ctx, sql.LevelDefault, func(u *glue.UnitOfWork) error {
		if err := u.Insert(ctx, alice); err != nil {
			return err
		}
		if err := u.Insert(ctx, admins); err != nil {
			return err
		}
		return u.AddManyToMany(ctx, alice, admins)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "inserted account %d and group %d\n", alice.ID, admins.ID)

	found, err := glue.Find[Account](ctx, p, alice.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "found %+v\n", *found)

	found.Name = "Alicia"
	if err := glue.AsRecord(found).Update(ctx, p); err != nil {
		return err
	}
	groups, err := glue.ListManyToMany[Group](ctx, p, found, glue.Filter{}, glue.Asc("title"), glue.Unlimited)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s belongs to %d group(s)\n", found.Name, len(groups))

	names, err := p.Map(ctx, (*Account)(nil), "id", "name", glue.Filter{}, glue.Asc("id"))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "accounts by id: %d\n", names.Len())

	if err := p.DelManyToMany(ctx, found, admins); err != nil {
		return err
	}
	if err := glue.Delete[Account](ctx, p, found.ID); err != nil {
		return err
	}
	if err := p.DeleteObject(ctx, admins); err != nil {
		return err
	}
	if _, err := glue.Find[Account](ctx, p, found.ID); !errors.Is(err, glue.ErrNotFound) {
		return fmt.Errorf("account %d still present: %v", found.ID, err)
	}
	for _, s := range p.CacheStats() {
		fmt.Fprintf(out, "cache %s: loaded=%t loads=%d\n", s.Table, s.Loaded, s.Loads)
	}
	fmt.Fprintln(out, "demo completed")
	return nil
}
