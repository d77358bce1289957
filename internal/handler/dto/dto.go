// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/rankpulse/tracker/internal/model"
)

// ErrorResponse represents an API error. Error holds the machine-readable
// code (or the bare message beacon clients expect); Details is only ever a
// generic description, never internal error text.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// TrackEventResponse is returned for an accepted beacon event.
type TrackEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id"`
}

// DateRangeResponse echoes the requested date window as YYYY-MM-DD strings.
type DateRangeResponse struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// WorldViewResponse is the payload of GET /api/v1/world-view.
type WorldViewResponse struct {
	EventsByCountry []model.CountryAggregate `json:"events_by_country"`
	TotalEvents     int64                    `json:"total_events"`
	TotalCountries  int                      `json:"total_countries"`
	DateRange       DateRangeResponse        `json:"date_range"`
}

// DateLayout is the query and response format of world-view dates.
const DateLayout = "2006-01-02"

// ToWorldViewResponse converts aggregation output to its API shape.
func ToWorldViewResponse(data *model.WorldViewData) *WorldViewResponse {
	return &WorldViewResponse{
		EventsByCountry: data.EventsByCountry,
		TotalEvents:     data.TotalEvents,
		TotalCountries:  data.TotalCountries,
		DateRange: DateRangeResponse{
			Start: formatDate(data.DateRange.Start),
			End:   formatDate(data.DateRange.End),
		},
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
