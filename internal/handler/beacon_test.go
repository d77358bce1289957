package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rankpulse/tracker/internal/middleware"
)

func TestBeaconHandler_Script(t *testing.T) {
	t.Parallel()

	h := NewBeaconHandler("https://collect.rankpulse.io", discardLogger())
	// Mounted behind the security middleware the way the router does it
	srv := middleware.Security(middleware.SecurityConfig{})(http.HandlerFunc(h.Script))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/beacon.js?website_id=site_1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/javascript; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if corp := w.Header().Get("Cross-Origin-Resource-Policy"); corp != "cross-origin" {
		t.Errorf("Cross-Origin-Resource-Policy = %q, want cross-origin", corp)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}

	body := w.Body.String()
	if !strings.Contains(body, "https://collect.rankpulse.io/track-event") {
		t.Error("script does not post to the configured endpoint")
	}
	if !strings.Contains(body, "site_1") {
		t.Error("script does not embed the website id")
	}
}

func TestBeaconHandler_InvalidWebsiteID(t *testing.T) {
	t.Parallel()

	h := NewBeaconHandler("https://collect.rankpulse.io", discardLogger())

	for _, query := range []string{"", "?website_id=", "?website_id=%22%3Balert(1)%2F%2F"} {
		w := httptest.NewRecorder()
		h.Script(w, httptest.NewRequest(http.MethodGet, "/beacon.js"+query, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", query, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("query %q: Content-Type = %q", query, ct)
		}
	}
}
