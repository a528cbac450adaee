package factory

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/internal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from cfg. Binaries install it with zap.ReplaceGlobals.
func NewLogger(cfg appforge.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	switch cfg.Format {
	case "", "json":
		zc.Encoding = "json"
	case "console":
		zc.Encoding = "console"
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return zc.Build()
}

// NewCompiler loads the built-in pattern library and returns a compiler for
// cfg. With CheckLibrary set, an inconsistent library is an error.
//
// Usage:
//
//	cfg := appforge.DefaultConfig()
//	compiler, err := factory.NewCompiler(cfg.Build)
//	if err != nil {
//	    // handle error
//	}
//	result := compiler.Build(spec, compiler.MatchPatterns(spec))
func NewCompiler(cfg appforge.BuildConfig) (*internal.ForgeCompiler, error) {
	lib, err := internal.DefaultPatternLibrary()
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern library: %w", err)
	}
	if cfg.CheckLibrary {
		if errs := internal.ValidateLibrary(lib); len(errs) > 0 {
			for _, e := range errs {
				zap.S().Errorw("pattern library is inconsistent", "pattern", e.PatternID, "code", e.Code(), "error", e.Error())
			}
			return nil, fmt.Errorf("pattern library has %d consistency errors: %w", len(errs), errs[0])
		}
	}
	if _, ok := lib.GetPattern(cfg.ShellPatternID); !ok {
		return nil, fmt.Errorf("shell pattern %q is not in the library", cfg.ShellPatternID)
	}
	return internal.NewForgeCompiler(lib, cfg, nil), nil
}

// NewSpecStore returns the store selected by cfg.Driver. The returned close
// function releases the database pool and is never nil.
func NewSpecStore(ctx context.Context, cfg appforge.StorageConfig) (appforge.SpecStore, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return internal.NewMemorySpecStore(), func() {}, nil
	case "postgres":
		pool, err := NewDatabasePool(ctx, cfg.Database)
		if err != nil {
			return nil, func() {}, err
		}
		if err := requireTables(ctx, pool, cfg.Database.TableNames); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return internal.NewPostgresSpecStore(pool, cfg.Database.TableNames), pool.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NewExporter returns the exporter selected by cfg.Driver.
func NewExporter(ctx context.Context, cfg appforge.ExportConfig) (appforge.Exporter, error) {
	switch cfg.Driver {
	case "", "file":
		return internal.NewFileExporter(cfg.Directory), nil
	case "s3":
		return internal.NewS3Exporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported export driver %q", cfg.Driver)
	}
}

// NewSessionRegistry returns a registry whose sessions share compiler, store and exporter.
func NewSessionRegistry(compiler appforge.Compiler, store appforge.SpecStore, exporter appforge.Exporter, cfg appforge.BuildConfig) *internal.SessionRegistry {
	parser := internal.NewSpecNormalizer(nil)
	opts := internal.OrchestratorOptions{MaxSurfacedErrors: cfg.MaxSurfacedErrors}
	return internal.NewSessionRegistry(func(sessionID string) *internal.Orchestrator {
		return internal.NewOrchestrator(sessionID, parser, compiler, store, exporter, opts)
	})
}

// ConnString renders cfg as a postgres URL with the given password.
func ConnString(cfg appforge.DatabaseConfig, password string) string {
	userInfo := url.User(cfg.Username)
	if password != "" {
		userInfo = url.UserPassword(cfg.Username, password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", cfg.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NewDatabasePool creates and pings a pgx pool for cfg. With UseIAM the
// password is replaced by a DSQL auth token.
func NewDatabasePool(ctx context.Context, cfg appforge.DatabaseConfig) (*pgxpool.Pool, error) {
	password := cfg.Password
	if cfg.UseIAM {
		token, err := generateAuthToken(ctx, cfg)
		if err != nil {
			return nil, err
		}
		password = token
	}

	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg, password))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := internal.PingPostgres(ctx, pool, 5*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func generateAuthToken(ctx context.Context, cfg appforge.DatabaseConfig) (string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("generate dsql auth token: %w", err)
	}
	zap.S().Infow("generated IAM auth token for Postgres connection", "endpoint", endpoint)
	return token, nil
}

type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var tableCollector = collectTablesFromPool

func collectTablesFromPool(ctx context.Context, pool queryPool) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tables, nil
}

// requireTables fails when the spec store tables have not been created.
func requireTables(ctx context.Context, pool queryPool, names appforge.TableNames) error {
	tables, err := tableCollector(ctx, pool)
	if err != nil {
		return err
	}
	var missing []string
	for _, want := range []string{names.Specifications, names.Builds} {
		if !slices.Contains(tables, unqualified(want)) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tables are missing in the database: %s (run forge-tools init-db)", strings.Join(missing, ", "))
	}
	zap.S().Debugw("spec store tables present", "tables", []string{names.Specifications, names.Builds})
	return nil
}

func unqualified(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}
