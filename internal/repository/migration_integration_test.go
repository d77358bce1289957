//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/rankpulse/tracker/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	for _, table := range []string{"websites", "events"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_EventsTableSchema(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	expectedColumns := []string{
		"id",
		"session_id",
		"event_type",
		"url",
		"element_tag",
		"element_id",
		"element_classes",
		"click_x",
		"click_y",
		"screen_resolution",
		"user_agent",
		"ip_address",
		"client_timestamp",
		"received_at",
		"website_id",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, pool, "events", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in events table", col)
			}
		})
	}
}

func TestIntegrationMigration_EventsConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	_, err := pool.Exec(ctx, `
		INSERT INTO events (id, session_id, event_type, url, client_timestamp)
		VALUES ('evt-bad-type', 's1', 'scroll', 'https://example.com', 'now')
	`)
	if err == nil {
		t.Error("Expected check constraint violation for unknown event_type")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO events (id, session_id, event_type, url, client_timestamp, click_x)
		VALUES ('evt-bad-x', 's1', 'click', 'https://example.com', 'now', 10001)
	`)
	if err == nil {
		t.Error("Expected check constraint violation for click_x > 10000")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO events (id, session_id, event_type, url, client_timestamp, website_id)
		VALUES ('evt-bad-site', 's1', 'pageview', 'https://example.com', 'now', 'no-such-site')
	`)
	if !isForeignKeyViolation(err) {
		t.Errorf("Expected foreign key violation for unknown website_id, got %v", err)
	}
}

// TestIntegrationMigration_RoundTripViaDatabaseSQL applies the down and up
// migrations through database/sql to make sure the files carry no
// pgx-specific syntax.
func TestIntegrationMigration_RoundTripViaDatabaseSQL(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	db, err := sql.Open("postgres", testutil.RequireEnv(t, "DATABASE_URL"))
	if err != nil {
		t.Fatalf("open database/sql: %v", err)
	}
	defer db.Close()

	for _, name := range []string{"000001_tracking.down.sql", "000001_tracking.up.sql", "000001_tracking.up.sql"} {
		path, err := testutil.MigrationPath(name)
		if err != nil {
			t.Fatalf("MigrationPath failed: %v", err)
		}
		body, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}

		if strings.Contains(name, "down") {
			exists, err := tableExists(ctx, pool, "events")
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if exists {
				t.Error("events table should not exist after rollback")
			}
		}
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetTrackingSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
