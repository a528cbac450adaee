//go:build integration

package e2e_harness

import (
	"context"
	"testing"
	"time"

	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/lychee-technology/appforge/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2ESessionBuildAndExport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E harness in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	h := &TestHarness{}

	dbCfg, err := h.StartPostgres(ctx)
	require.NoError(t, err, "start postgres")
	defer h.StopPostgres(context.Background())

	endpoint, err := h.StartS3(ctx)
	require.NoError(t, err, "start s3")
	defer h.StopS3(context.Background())

	require.NoError(t, PrepareSpecStore(ctx, h.Pool, dbCfg.TableNames))

	cfg := appforge.DefaultConfig()
	cfg.Storage = appforge.StorageConfig{Driver: "postgres", Database: dbCfg}
	cfg.Export = S3ExportConfig(endpoint, "appforge-e2e", "exports")

	store, closeStore, err := factory.NewSpecStore(ctx, cfg.Storage)
	require.NoError(t, err)
	defer closeStore()

	exporter, err := factory.NewExporter(ctx, cfg.Export)
	require.NoError(t, err)

	compiler, err := factory.NewCompiler(cfg.Build)
	require.NoError(t, err)

	sessions := factory.NewSessionRegistry(compiler, store, exporter, cfg.Build)
	defer sessions.Close()

	session := sessions.Create()
	turn, err := session.ApplyResponse(ctx, TodoResponse)
	require.NoError(t, err)
	require.Equal(t, internal.OutcomeSpecUpdated, turn.Outcome)
	require.True(t, turn.Validation.Valid)

	built, err := session.Build(ctx)
	require.NoError(t, err)
	require.Equal(t, internal.OutcomeBuilt, built.Outcome, built.Errors)

	location, err := session.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "s3://appforge-e2e/exports/team-todo.html", location)

	uploaded, err := ReadObject(ctx, endpoint, "appforge-e2e", "exports/team-todo.html")
	require.NoError(t, err)
	assert.Equal(t, built.Result.HTML, string(uploaded))

	// A fresh orchestrator for the same session sees the persisted state.
	reopened := internal.NewOrchestrator(session.SessionID(), internal.NewSpecNormalizer(nil), compiler, store, exporter, internal.OrchestratorOptions{})
	state, err := reopened.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.Spec)
	assert.Equal(t, "Team Todo", state.Spec.Meta.Name)
	require.NotNil(t, state.LatestBuild)
	assert.Equal(t, built.BuildID, state.LatestBuild.ID)
	assert.Equal(t, internal.PhaseReady, state.Phase)

	if hc, ok := store.(internal.HealthChecker); ok {
		assert.NoError(t, hc.HealthCheck(ctx))
	}
	if hc, ok := exporter.(internal.HealthChecker); ok {
		assert.NoError(t, hc.HealthCheck(ctx))
	}
}
