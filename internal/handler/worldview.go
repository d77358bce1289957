package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rankpulse/tracker/internal/geo"
	"github.com/rankpulse/tracker/internal/handler/dto"
	"github.com/rankpulse/tracker/internal/middleware"
	"github.com/rankpulse/tracker/internal/model"
	"github.com/rankpulse/tracker/internal/service"
)

// HeaderUserID carries the caller identity set by the upstream auth gateway.
const HeaderUserID = "X-User-ID"

// writeDeadlineSlack is the time left to encode and flush the response once
// the aggregation budget is spent.
const writeDeadlineSlack = 30 * time.Second

// WorldViewProvider computes world map data for a user.
type WorldViewProvider interface {
	GetWorldViewData(ctx context.Context, userID string, dateRange model.DateRange) (*model.WorldViewData, error)
}

// WorldViewHandler serves the per-country aggregation dashboard endpoint.
type WorldViewHandler struct {
	provider WorldViewProvider
	logger   *slog.Logger
	timeout  time.Duration
}

// NewWorldViewHandler creates a new WorldViewHandler. A zero timeout leaves
// the request context as is.
func NewWorldViewHandler(provider WorldViewProvider, logger *slog.Logger, timeout time.Duration) *WorldViewHandler {
	return &WorldViewHandler{
		provider: provider,
		logger:   logger.With("component", "handler.worldview"),
		timeout:  timeout,
	}
}

// WorldView handles GET /api/v1/world-view?start_date=&end_date=
func (h *WorldViewHandler) WorldView(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "missing " + HeaderUserID + " header",
		})
		return
	}

	dateRange, field, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "InvalidDate",
			Message: field + " must be formatted as YYYY-MM-DD",
		})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()

		// The server-wide WriteTimeout is sized for ingestion, not aggregation
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Now().Add(h.timeout + writeDeadlineSlack)); err != nil {
			h.logger.Debug("write deadline not extended", "error", err)
		}
	}

	data, err := h.provider.GetWorldViewData(ctx, userID, dateRange)
	if err != nil {
		h.writeAggregationError(w, r, userID, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToWorldViewResponse(data))
}

func (h *WorldViewHandler) writeAggregationError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, service.ErrGeoUnavailable):
		h.logger.Warn("geo resolution unavailable", "user_id", userID, "request_id", requestID, "error", err)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{
			Error:   "GeoResolutionUnavailable",
			Message: "country lookup service is unavailable, try again later",
		})
	case errors.Is(err, geo.ErrInterrupted), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("aggregation timed out", "user_id", userID, "request_id", requestID, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, dto.ErrorResponse{
			Error:   "AggregationTimeout",
			Message: "aggregation did not finish in time, narrow the date range",
		})
	default:
		h.logger.Error("aggregation failed", "user_id", userID, "request_id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Failed to load world view",
			Details: "An internal error occurred",
		})
	}
}

// parseDateRange reads optional start_date and end_date in UTC.
// On failure it returns the offending parameter name.
func parseDateRange(r *http.Request) (model.DateRange, string, error) {
	var dr model.DateRange
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &dr.Start},
		{"end_date", &dr.End},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dto.DateLayout, raw, time.UTC)
		if err != nil {
			return model.DateRange{}, p.name, err
		}
		*p.dst = &t
	}

	return dr, "", nil
}
