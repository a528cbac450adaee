package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

type specStorePool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSpecStore persists specs and builds as JSONB rows.
type PostgresSpecStore struct {
	pool    specStorePool
	tables  appforge.TableNames
	ids     *BuildIDSource
	nowFunc func() time.Time
}

var _ appforge.SpecStore = (*PostgresSpecStore)(nil)

func NewPostgresSpecStore(pool specStorePool, tables appforge.TableNames) *PostgresSpecStore {
	return &PostgresSpecStore{
		pool:    pool,
		tables:  tables,
		ids:     NewBuildIDSource(),
		nowFunc: time.Now,
	}
}

func (s *PostgresSpecStore) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.nowFunc = now
}

func (s *PostgresSpecStore) now() time.Time {
	return s.nowFunc().UTC()
}

func saveSpecQuery(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (session_id, spec_id, spec, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id)
			DO UPDATE SET spec_id = EXCLUDED.spec_id, spec = EXCLUDED.spec, updated_at = EXCLUDED.updated_at`,
		sanitizeIdentifier(table),
	)
}

func loadSpecQuery(table string) string {
	return fmt.Sprintf(`SELECT spec FROM %s WHERE session_id = $1`, sanitizeIdentifier(table))
}

func deleteSpecQuery(table string) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, sanitizeIdentifier(table))
}

func insertBuildQuery(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (id, session_id, success, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		sanitizeIdentifier(table),
	)
}

func latestBuildQuery(table string) string {
	return fmt.Sprintf(
		`SELECT id, result, created_at FROM %s WHERE session_id = $1 ORDER BY id DESC LIMIT 1`,
		sanitizeIdentifier(table),
	)
}

func (s *PostgresSpecStore) SaveSpec(ctx context.Context, sessionID string, spec *appforge.Specification) error {
	if spec == nil {
		return appforge.NewStorageError("specification cannot be nil", nil)
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return appforge.NewStorageError("failed to encode specification", err)
	}

	if _, err := s.pool.Exec(ctx, saveSpecQuery(s.tables.Specifications),
		sessionID, specIdentity(spec), string(data), s.now()); err != nil {
		zap.S().Warnw("failed to save specification", "session", sessionID, "error", err)
		return appforge.NewStorageError("failed to save specification", err)
	}
	return nil
}

func (s *PostgresSpecStore) LoadSpec(ctx context.Context, sessionID string) (*appforge.Specification, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, loadSpecQuery(s.tables.Specifications), sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appforge.NewSpecNotFoundError(sessionID)
		}
		return nil, appforge.NewStorageError("failed to load specification", err)
	}

	var spec appforge.Specification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, appforge.NewStorageError("failed to decode specification", err)
	}
	return &spec, nil
}

func (s *PostgresSpecStore) DeleteSpec(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, deleteSpecQuery(s.tables.Specifications), sessionID); err != nil {
		return appforge.NewStorageError("failed to delete specification", err)
	}
	return nil
}

func (s *PostgresSpecStore) SaveBuild(ctx context.Context, sessionID string, result *appforge.BuildResult) (*appforge.BuildRecord, error) {
	if result == nil {
		return nil, appforge.NewStorageError("build result cannot be nil", nil)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, appforge.NewStorageError("failed to encode build result", err)
	}

	createdAt := s.now()
	id := s.ids.Next(createdAt)
	if _, err := s.pool.Exec(ctx, insertBuildQuery(s.tables.Builds),
		id, sessionID, result.Success, string(data), createdAt); err != nil {
		zap.S().Warnw("failed to save build", "session", sessionID, "error", err)
		return nil, appforge.NewStorageError("failed to save build", err)
	}
	return &appforge.BuildRecord{ID: id, SessionID: sessionID, Result: result, CreatedAt: createdAt}, nil
}

func (s *PostgresSpecStore) LatestBuild(ctx context.Context, sessionID string) (*appforge.BuildRecord, error) {
	var (
		id        string
		data      []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, latestBuildQuery(s.tables.Builds), sessionID).Scan(&id, &data, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appforge.NewBuildNotFoundError(sessionID)
		}
		return nil, appforge.NewStorageError("failed to load latest build", err)
	}

	var result appforge.BuildResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, appforge.NewStorageError("failed to decode build result", err)
	}
	return &appforge.BuildRecord{ID: id, SessionID: sessionID, Result: &result, CreatedAt: createdAt.UTC()}, nil
}
