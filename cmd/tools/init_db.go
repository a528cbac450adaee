package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/lychee-technology/appforge/internal"
	"github.com/spf13/cobra"
)

type initDBOptions struct {
	host       string
	port       int
	database   string
	user       string
	password   string
	sslMode    string
	specTable  string
	buildTable string
	dryRun     bool
}

func newInitDBCmd(_ *rootOptions) *cobra.Command {
	opts := initDBOptions{}

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the PostgreSQL tables used by the spec store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := appforge.TableNames{Specifications: opts.specTable, Builds: opts.buildTable}
			if opts.dryRun {
				for _, ddl := range internal.SpecStoreDDL(tables) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", ddl)
				}
				return nil
			}
			if err := initDatabase(cmd.Context(), opts, tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized: %s, %s\n", opts.specTable, opts.buildTable)
			return nil
		},
	}

	defaults := appforge.DefaultConfig().Storage.Database
	flags := cmd.Flags()
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", defaults.Host), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", defaults.Port), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", defaults.Database), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", defaults.Username), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", defaults.SSLMode), "database sslmode")
	flags.StringVar(&opts.specTable, "spec-table", getenvDefault("SPEC_TABLE", defaults.TableNames.Specifications), "specification table name")
	flags.StringVar(&opts.buildTable, "build-table", getenvDefault("BUILD_TABLE", defaults.TableNames.Builds), "build history table name")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the DDL instead of executing it")
	return cmd
}

func initDatabase(ctx context.Context, opts initDBOptions, tables appforge.TableNames) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dbCfg := appforge.DatabaseConfig{
		Host:     opts.host,
		Port:     opts.port,
		Database: opts.database,
		Username: opts.user,
		SSLMode:  opts.sslMode,
	}
	pool, err := pgxpool.New(ctx, factory.ConnString(dbCfg, opts.password))
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return withTx(ctx, conn, func(tx pgx.Tx) error {
		return internal.EnsureSpecStoreSchema(ctx, tx, tables)
	})
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
