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

	"github.com/rankpulse/tracker/internal/model"
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

const advisoryLockID int64 = 731731

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

// MigrationPath returns the path of a migration file under migrations/.
func MigrationPath(name string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "migrations", name), nil
}

// ResetTrackingSchema drops and recreates the websites and events tables.
func ResetTrackingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, name := range []string{"000001_tracking.down.sql", "000001_tracking.up.sql"} {
		path, err := MigrationPath(name)
		if err != nil {
			return err
		}
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// SeedWebsite inserts a website owned by userID and returns its id.
func SeedWebsite(ctx context.Context, pool *pgxpool.Pool, userID string) (string, error) {
	id := UniqueID("site")
	_, err := pool.Exec(ctx, `
		INSERT INTO websites (id, user_id, domain)
		VALUES ($1, $2, $3)
	`, id, userID, id+".example.com")
	if err != nil {
		return "", fmt.Errorf("seed website: %w", err)
	}
	return id, nil
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

// NewTestEvent creates a pageview event with sensible defaults.
func NewTestEvent(t testing.TB, websiteID, ip string) *model.TrackingEvent {
	t.Helper()
	now := time.Now().UTC()
	event := &model.TrackingEvent{
		ID:              UniqueID("evt"),
		SessionID:       "session-" + UniqueID("s"),
		EventType:       model.EventTypePageview,
		URL:             "https://example.com/",
		ClientTimestamp: now.Format(time.RFC3339),
		ReceivedAt:      now,
	}
	if websiteID != "" {
		event.WebsiteID = &websiteID
	}
	if ip != "" {
		event.IPAddress = &ip
	}
	return event
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
