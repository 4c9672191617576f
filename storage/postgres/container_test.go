package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testImage = "pgvector/pgvector:pg16"

var (
	sharedURL     string
	sharedURLOnce sync.Once
	sharedURLErr  error
)

// testDatabaseURL starts one pgvector container per test binary.
func testDatabaseURL(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedURLOnce.Do(func() {
		sharedURL, sharedURLErr = startContainer()
	})
	if sharedURLErr != nil {
		t.Fatalf("Failed to start postgres container: %v", sharedURLErr)
	}
	return sharedURL
}

func startContainer() (string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "catalog",
			"POSTGRES_USER":     "catalog",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	return fmt.Sprintf("postgres://catalog:test_password@%s:%s/catalog?sslmode=disable", host, port.Port()), nil
}

// newTestStore opens a migrated store and empties every table.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := testDatabaseURL(t)
	ctx := context.Background()

	s, err := open(ctx, &Config{URL: url, Dimensions: 1536})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE product_mappings, inventory, products RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}
