package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// HealthChecker is implemented by stores and exporters that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type postgresPinger interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PingPostgres pings db and runs a trivial query. timeout may be 0 to use 5s.
func PingPostgres(ctx context.Context, db postgresPinger, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres simple query failed: %w", err)
	}
	return nil
}

// HealthCheck pings the store's database.
func (s *PostgresSpecStore) HealthCheck(ctx context.Context) error {
	return PingPostgres(ctx, s.pool, 0)
}
