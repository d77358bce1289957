package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rankpulse/tracker/internal/handler/dto"
)

func TestHandler_Fallbacks(t *testing.T) {
	h := New()

	tests := []struct {
		name       string
		serve      http.HandlerFunc
		wantStatus int
		wantError  string
	}{
		{"not found", h.NotFound, http.StatusNotFound, "NotFound"},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, "MethodNotAllowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}

			var response dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Error != tt.wantError {
				t.Errorf("unexpected error: %s", response.Error)
			}
		})
	}
}
