// Package testutil provides helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/PascalRepond/rero-mef/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 620620

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates the record schema for tests.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, e := range model.AllEntities {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s, %s",
			e.PidstoreTable(), e.MetadataTable())
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("drop %s tables: %w", e, err)
		}
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS oai_sources"); err != nil {
		return fmt.Errorf("drop oai_sources: %w", err)
	}
	if _, err := pool.Exec(ctx, "DROP SEQUENCE IF EXISTS mef_pid_seq"); err != nil {
		return fmt.Errorf("drop mef pid sequence: %w", err)
	}

	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	schemaSQL, err := os.ReadFile(filepath.Join(root, "internal", "repository", "schema.sql"))
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestAgent creates an agent record with sensible defaults.
func NewTestAgent(t testing.TB, pid string) model.Record {
	t.Helper()
	return model.Record{
		"pid":            pid,
		"type":           "bf:Person",
		"preferred_name": "Agent, Test " + pid,
		"identifier":     "https://example.org/" + pid,
	}
}

// NewTestViafCluster creates a VIAF record linking agent pids.
// Empty pids are left out of the cluster.
func NewTestViafCluster(t testing.TB, viafPid, gndPid, idrefPid, reroPid string) model.Record {
	t.Helper()
	rec := model.Record{"pid": viafPid}
	if gndPid != "" {
		rec["gnd_pid"] = gndPid
	}
	if idrefPid != "" {
		rec["idref_pid"] = idrefPid
	}
	if reroPid != "" {
		rec["rero_pid"] = reroPid
	}
	return rec
}

// UniquePid generates a unique pid for tests.
func UniquePid(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}
