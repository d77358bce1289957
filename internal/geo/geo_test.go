package geo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/model"
)

// fakeIPAPI is an ip-api compatible test server that counts lookups per IP.
type fakeIPAPI struct {
	mu      sync.Mutex
	calls   map[string]int
	answers map[string]ipAPIResponse
	status  int
}

func newFakeIPAPI(t *testing.T) (*fakeIPAPI, *httptest.Server) {
	t.Helper()

	f := &fakeIPAPI{
		calls: make(map[string]int),
		answers: map[string]ipAPIResponse{
			"8.8.8.8": {Status: "success", Country: "United States", CountryCode: "US", Lat: 38, Lon: -95},
			"2.2.2.2": {Status: "success", Country: "France", CountryCode: "FR", Lat: 46, Lon: 2},
			"1.1.1.1": {Status: "success", Country: "Australia", CountryCode: "AU", Lat: -27, Lon: 133},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := strings.TrimPrefix(r.URL.Path, "/json/")

		f.mu.Lock()
		f.calls[ip]++
		status := f.status
		answer, ok := f.answers[ip]
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if !ok {
			answer = ipAPIResponse{Status: "fail", Message: "reserved range"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(answer)
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeIPAPI) failWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeIPAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeIPAPI) callsFor(ip string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ip]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(srv *httptest.Server, cache Cache, cfg ResolverConfig) *Resolver {
	provider := NewIPAPIProvider(srv.URL, time.Second)
	return NewResolver(provider, cache, cfg, testLogger(), metrics.NewNoop())
}

func TestResolver_PrivateIPNeverLookedUp(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	ips := []string{"192.168.1.5", "10.0.0.1", "127.0.0.1", "169.254.1.1", "::1", "fd00::1", "not-an-ip", ""}
	results, err := resolver.Resolve(context.Background(), ips)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for _, ip := range ips {
		res, ok := results[ip]
		if !ok {
			t.Errorf("%q missing from results", ip)
		}
		if res != nil {
			t.Errorf("%q resolved to %+v, want nil", ip, res)
		}
	}

	if n := fake.total(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestResolver_CachesAcrossCalls(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	cache := NewMemoryCache()
	resolver := newTestResolver(srv, cache, ResolverConfig{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		results, err := resolver.Resolve(ctx, []string{"8.8.8.8"})
		if err != nil {
			t.Fatalf("Resolve #%d failed: %v", i+1, err)
		}
		res := results["8.8.8.8"]
		if res == nil || res.CountryCode != "US" {
			t.Fatalf("Resolve #%d = %+v, want US", i+1, res)
		}
	}

	if n := fake.callsFor("8.8.8.8"); n != 1 {
		t.Errorf("provider called %d times for 8.8.8.8, want 1", n)
	}
	if cache.Len() != 1 {
		t.Errorf("cache has %d entries, want 1", cache.Len())
	}
}

func TestResolver_DeduplicatesInput(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	results, err := resolver.Resolve(context.Background(), []string{"8.8.8.8", "8.8.8.8", " 8.8.8.8 "})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(results) != 1 {
		t.Errorf("results has %d keys, want 1", len(results))
	}
	if n := fake.callsFor("8.8.8.8"); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestResolver_SingleFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	// 9.9.9.9 is unknown to the fake and answers status=fail
	results, err := resolver.Resolve(context.Background(), []string{"9.9.9.9", "2.2.2.2"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if results["9.9.9.9"] != nil {
		t.Errorf("9.9.9.9 = %+v, want nil", results["9.9.9.9"])
	}
	if res := results["2.2.2.2"]; res == nil || res.CountryCode != "FR" {
		t.Errorf("2.2.2.2 = %+v, want FR", res)
	}
	if n := fake.total(); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
}

func TestResolver_FailedLookupsAreNotCached(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := resolver.Resolve(ctx, []string{"9.9.9.9"}); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}

	if n := fake.callsFor("9.9.9.9"); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
}

func TestResolver_ProviderDownIsUnavailable(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	fake.failWith(http.StatusServiceUnavailable)
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	results, err := resolver.Resolve(context.Background(), []string{"8.8.8.8", "2.2.2.2", "10.0.0.1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if results["8.8.8.8"] != nil || results["2.2.2.2"] != nil {
		t.Error("no IP should resolve while the provider is down")
	}
}

func TestResolver_UnreachableProvider(t *testing.T) {
	t.Parallel()

	_, srv := newFakeIPAPI(t)
	srv.Close()
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	_, err := resolver.Resolve(context.Background(), []string{"8.8.8.8"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestResolver_OnlyNonPublicIPsIsNotUnavailable(t *testing.T) {
	t.Parallel()

	_, srv := newFakeIPAPI(t)
	srv.Close()
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{})

	if _, err := resolver.Resolve(context.Background(), []string{"192.168.0.1"}); err != nil {
		t.Fatalf("error = %v, want nil when no lookup is attempted", err)
	}
}

func TestResolver_LookupCap(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	recorder := metrics.NewInMemory()
	provider := NewIPAPIProvider(srv.URL, time.Second)
	resolver := NewResolver(provider, NewMemoryCache(), ResolverConfig{MaxLookups: 2}, testLogger(), recorder)

	results, err := resolver.Resolve(context.Background(), []string{"8.8.8.8", "2.2.2.2", "1.1.1.1"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if n := fake.total(); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
	if _, ok := results["1.1.1.1"]; !ok {
		t.Error("IP beyond the cap should still be present in results")
	}
	if results["1.1.1.1"] != nil {
		t.Error("IP beyond the cap should resolve to nil")
	}
	if snap := recorder.Snapshot(); snap.GeoSkippedOverCap != 1 {
		t.Errorf("GeoSkippedOverCap = %d, want 1", snap.GeoSkippedOverCap)
	}
}

func TestResolver_CachedIPsDoNotCountTowardCap(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	cache := NewMemoryCache()
	_ = cache.Add(context.Background(), &model.CountryResolution{IP: "8.8.8.8", CountryCode: "US", CountryName: "United States"})
	resolver := newTestResolver(srv, cache, ResolverConfig{MaxLookups: 1})

	results, err := resolver.Resolve(context.Background(), []string{"8.8.8.8", "2.2.2.2"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if results["8.8.8.8"] == nil || results["2.2.2.2"] == nil {
		t.Errorf("both IPs should resolve, got %+v", results)
	}
	if n := fake.total(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestResolver_PacesLookups(t *testing.T) {
	t.Parallel()

	_, srv := newFakeIPAPI(t)
	interval := 50 * time.Millisecond
	resolver := newTestResolver(srv, NewMemoryCache(), ResolverConfig{LookupInterval: interval})

	start := time.Now()
	if _, err := resolver.Resolve(context.Background(), []string{"8.8.8.8", "2.2.2.2", "1.1.1.1"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// First lookup is immediate, the next two wait one interval each
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("three lookups took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestResolver_CancellationKeepsCachedResults(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeIPAPI(t)
	cache := NewMemoryCache()
	resolver := newTestResolver(srv, cache, ResolverConfig{LookupInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := resolver.Resolve(ctx, []string{"8.8.8.8", "2.2.2.2"})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("error = %v, want ErrInterrupted", err)
	}
	if n := fake.total(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}

	cached, _ := cache.GetMany(context.Background(), []string{"8.8.8.8"})
	if cached["8.8.8.8"] == nil {
		t.Error("resolution completed before cancellation should stay cached")
	}
}
