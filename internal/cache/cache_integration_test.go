//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rankpulse/tracker/internal/model"
	"github.com/rankpulse/tracker/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, c
}

func TestIntegrationWindowLimiter_DeniesPastLimit(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	limiter := c.NewWindowLimiter(3, time.Minute)
	ip := testutil.UniqueID("ip")

	for i := 1; i <= 3; i++ {
		allowed, err := limiter.Allow(ctx, ip)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be admitted", i)
		}
	}

	allowed, err := limiter.Allow(ctx, ip)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Fatal("request 4 should be denied")
	}
}

func TestIntegrationWindowLimiter_ResetsAfterWindow(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	limiter := c.NewWindowLimiter(1, 200*time.Millisecond)
	ip := testutil.UniqueID("ip")

	if allowed, _ := limiter.Allow(ctx, ip); !allowed {
		t.Fatal("first request should be admitted")
	}
	if allowed, _ := limiter.Allow(ctx, ip); allowed {
		t.Fatal("second request should be denied")
	}

	time.Sleep(300 * time.Millisecond)

	if allowed, _ := limiter.Allow(ctx, ip); !allowed {
		t.Fatal("first request of the next window should be admitted")
	}
}

func TestIntegrationGeoStore_InsertIfAbsent(t *testing.T) {
	ctx, c := newCacheTestEnv(t)
	store := c.NewGeoStore()

	first := &model.CountryResolution{IP: "8.8.8.8", CountryCode: "US", CountryName: "United States", Coordinates: model.Coordinates{-95, 38}}
	second := &model.CountryResolution{IP: "8.8.8.8", CountryCode: "CA", CountryName: "Canada"}

	if err := store.Add(ctx, first); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, second); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	found, err := store.GetMany(ctx, []string{"8.8.8.8", "1.1.1.1"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}

	if len(found) != 1 {
		t.Fatalf("found %d entries, want 1", len(found))
	}
	got := found["8.8.8.8"]
	if got == nil || got.CountryCode != "US" {
		t.Errorf("cached resolution = %+v, want the first write (US)", got)
	}
	if got.Coordinates != first.Coordinates {
		t.Errorf("Coordinates = %v, want %v", got.Coordinates, first.Coordinates)
	}
}
