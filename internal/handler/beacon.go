package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rankpulse/tracker/internal/analytics"
	"github.com/rankpulse/tracker/internal/handler/dto"
)

// BeaconHandler serves the embeddable tracking script.
type BeaconHandler struct {
	publicBaseURL string
	logger        *slog.Logger
}

// NewBeaconHandler creates a new BeaconHandler. publicBaseURL is the origin
// customer pages post events to.
func NewBeaconHandler(publicBaseURL string, logger *slog.Logger) *BeaconHandler {
	return &BeaconHandler{
		publicBaseURL: publicBaseURL,
		logger:        logger.With("component", "handler.beacon"),
	}
}

// Script handles GET /beacon.js?website_id=...
func (h *BeaconHandler) Script(w http.ResponseWriter, r *http.Request) {
	websiteID := r.URL.Query().Get("website_id")

	script, err := analytics.RenderBeacon(h.publicBaseURL, websiteID)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidWebsiteID) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "InvalidWebsiteId",
				Message: "website_id must be 1-64 characters of letters, digits, '-' or '_'",
			})
			return
		}
		h.logger.Error("failed to render beacon", "website_id", websiteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Failed to render beacon",
			Details: "An internal error occurred",
		})
		return
	}

	// Embedded by third-party pages, so the strict defaults are relaxed here
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}
