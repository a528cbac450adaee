package e2e_harness

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	s3AccessKey    = "minio"
	s3SecretKey    = "minio"
	startupTimeout = 30 * time.Second
)

// TestHarness holds lightweight runners for dependencies used by E2E tests.
type TestHarness struct {
	PGContainer testcontainers.Container
	Database    appforge.DatabaseConfig
	Pool        *pgxpool.Pool
	S3Container testcontainers.Container
	S3Endpoint  string
}

// startContainer runs image and returns it with the host and mapped port
// of containerPort once the port accepts connections.
func startContainer(ctx context.Context, image, containerPort string, env map[string]string) (testcontainers.Container, string, string, error) {
	exposed := containerPort + "/tcp"
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{exposed},
			Env:          env,
			WaitingFor:   wait.ForListeningPort(nat.Port(exposed)).WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("start %s: %w", image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", "", err
	}
	mapped, err := container.MappedPort(ctx, nat.Port(containerPort))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", "", err
	}
	return container, host, mapped.Port(), nil
}

// StartPostgres starts Postgres and opens h.Pool against it. Callers stop it
// with StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (appforge.DatabaseConfig, error) {
	container, host, mappedPort, err := startContainer(ctx, "postgres:16", "5432", map[string]string{
		"POSTGRES_PASSWORD": "password",
		"POSTGRES_USER":     "postgres",
		"POSTGRES_DB":       "appforge",
	})
	if err != nil {
		return appforge.DatabaseConfig{}, err
	}
	h.PGContainer = container

	port, err := strconv.Atoi(mappedPort)
	if err != nil {
		return appforge.DatabaseConfig{}, err
	}

	cfg := appforge.DefaultConfig().Storage.Database
	cfg.Host = host
	cfg.Port = port
	cfg.Database = "appforge"
	cfg.Username = "postgres"
	cfg.Password = "password"
	cfg.SSLMode = "disable"
	h.Database = cfg

	// The port opens before the server accepts queries.
	deadline := time.Now().Add(20 * time.Second)
	for {
		pool, err := factory.NewDatabasePool(ctx, cfg)
		if err == nil {
			h.Pool = pool
			return cfg, nil
		}
		if time.Now().After(deadline) {
			return appforge.DatabaseConfig{}, fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres closes the pool and stops the Postgres container.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// StartS3 starts an S3 compatible object store and returns its endpoint.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	container, host, port, err := startContainer(ctx, "rustfs/rustfs:latest", "9000", map[string]string{
		"RUSTFS_ACCESS_KEY": s3AccessKey,
		"RUSTFS_SECRET_KEY": s3SecretKey,
	})
	if err != nil {
		return "", err
	}
	h.S3Container = container
	h.S3Endpoint = fmt.Sprintf("http://%s:%s", host, port)
	return h.S3Endpoint, nil
}

// StopS3 stops the S3 container.
func (h *TestHarness) StopS3(ctx context.Context) error {
	if h.S3Container != nil {
		if err := h.S3Container.Terminate(ctx); err != nil {
			return err
		}
		h.S3Container = nil
	}
	return nil
}
