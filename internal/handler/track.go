package handler

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rankpulse/tracker/internal/analytics"
	"github.com/rankpulse/tracker/internal/handler/dto"
	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/middleware"
	"github.com/rankpulse/tracker/internal/model"
	"github.com/rankpulse/tracker/internal/repository"
)

// EventStore persists accepted tracking events.
type EventStore interface {
	InsertEvent(ctx context.Context, event *model.TrackingEvent) error
}

// TrackHandler handles beacon event ingestion.
// Rate limiting and body size limits are applied by middleware on the route.
type TrackHandler struct {
	store   EventStore
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewTrackHandler creates a new TrackHandler.
func NewTrackHandler(store EventStore, logger *slog.Logger, recorder metrics.Recorder) *TrackHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TrackHandler{
		store:   store,
		logger:  logger.With("component", "handler.track"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Track handles POST /track-event.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "MethodNotAllowed"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.IncEventIngested("rejected")
		if middleware.IsBodyTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "PayloadTooLarge"})
			return
		}
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: analytics.CodeInvalidPayload})
		return
	}

	receivedAt := h.now().UTC()
	event, err := analytics.ParseTrackEvent(body, analytics.RequestMeta{
		IP:         analytics.ClientIP(r),
		UserAgent:  r.UserAgent(),
		ReceivedAt: receivedAt,
	})
	if err != nil {
		h.metrics.IncEventIngested("rejected")
		var vErr *analytics.ValidationError
		if errors.As(err, &vErr) {
			h.logger.Debug("event rejected", "code", vErr.Code, "field", vErr.Field)
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Code})
			return
		}
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: analytics.CodeInvalidPayload})
		return
	}

	event.ID = ulid.MustNew(ulid.Timestamp(receivedAt), rand.Reader).String()

	if err := h.store.InsertEvent(r.Context(), event); err != nil {
		h.metrics.IncEventIngested("failed")
		h.logger.Error("failed to insert event",
			"event_id", event.ID,
			"event_type", event.EventType,
			"unknown_website", errors.Is(err, repository.ErrUnknownWebsite),
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Failed to track event",
			Details: "An internal error occurred",
		})
		return
	}

	h.metrics.IncEventIngested("accepted")
	writeJSON(w, http.StatusOK, dto.TrackEventResponse{Success: true, EventID: event.ID})
}
