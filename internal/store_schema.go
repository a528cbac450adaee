package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/appforge"
)

// SchemaExecer is satisfied by pgx.Tx, *pgxpool.Pool and *pgx.Conn.
type SchemaExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SpecStoreDDL returns the statements that create the spec store tables.
func SpecStoreDDL(tables appforge.TableNames) []string {
	specTable := sanitizeIdentifier(tables.Specifications)
	buildTable := sanitizeIdentifier(tables.Builds)
	buildIndex := sanitizeIdentifier(strings.ReplaceAll(tables.Builds, ".", "_") + "_session_idx")

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		session_id  TEXT PRIMARY KEY,
		spec_id     TEXT NOT NULL,
		spec        JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`, specTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		success     BOOLEAN NOT NULL,
		result      JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`, buildTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (session_id, id DESC)`, buildIndex, buildTable),
	}
}

// EnsureSpecStoreSchema creates the spec store tables if they are missing.
func EnsureSpecStoreSchema(ctx context.Context, db SchemaExecer, tables appforge.TableNames) error {
	if tables.Specifications == "" || tables.Builds == "" {
		return fmt.Errorf("spec store table names cannot be empty")
	}
	for _, ddl := range SpecStoreDDL(tables) {
		if _, err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure spec store schema: %w", err)
		}
	}
	return nil
}
