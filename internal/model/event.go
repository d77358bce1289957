// Package model defines domain entities for the application.
package model

import "time"

// EventType is the kind of visitor action a beacon reports.
type EventType string

const (
	EventTypePageview EventType = "pageview"
	EventTypeClick    EventType = "click"
)

// EventTypes lists every accepted event type.
var EventTypes = []EventType{EventTypePageview, EventTypeClick}

// IsValid checks if the event type is one the pipeline accepts.
func (t EventType) IsValid() bool {
	return t == EventTypePageview || t == EventTypeClick
}

// Field limits for tracking events. Longer values are truncated, never rejected.
const (
	MaxSessionIDLength        = 36
	MaxURLLength              = 2048
	MaxElementTagLength       = 50
	MaxElementIDLength        = 255
	MaxElementClassesLength   = 500
	MaxScreenResolutionLength = 11
	MaxUserAgentLength        = 500
	MaxIPAddressLength        = 45
	MaxClientTimestampLength  = 64
	MaxWebsiteIDLength        = 64

	MinClickCoordinate = 0
	MaxClickCoordinate = 10000
)

// TrackingEvent represents one observed visitor action.
// Events are immutable once written.
type TrackingEvent struct {
	ID        string    `json:"id"` // ULID (time-sortable)
	SessionID string    `json:"session_id"`
	EventType EventType `json:"event_type"`
	URL       string    `json:"url"`

	// Click details (optional)
	ElementTag     *string `json:"element_tag"`
	ElementID      *string `json:"element_id"`
	ElementClasses *string `json:"element_classes"`
	ClickX         *int    `json:"click_x"`
	ClickY         *int    `json:"click_y"`

	ScreenResolution *string `json:"screen_resolution"`

	// Server-captured request metadata
	UserAgent *string `json:"user_agent"`
	IPAddress *string `json:"ip_address"`

	ClientTimestamp string    `json:"client_timestamp"`
	ReceivedAt      time.Time `json:"received_at"`
	WebsiteID       *string   `json:"website_id"`
}

// EventIP is the slice of an event the aggregation engine needs.
type EventIP struct {
	IPAddress string
	EventType EventType
}

// IPEventCount is the number of events of one type seen from one IP.
type IPEventCount struct {
	IPAddress string
	EventType EventType
	Count     int64
}

// DateRange bounds an aggregation query. Nil bounds are open.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// RateLimitWindow is the per-IP request accounting used for ingestion throttling.
type RateLimitWindow struct {
	IP           string
	RequestCount int
	ResetAt      time.Time
}

// Expired reports whether the window has lapsed at now.
func (w *RateLimitWindow) Expired(now time.Time) bool {
	return now.After(w.ResetAt)
}

// EndExclusive returns the first instant after the End day, so a range
// ending on 2024-01-31 includes everything received that day.
func (r DateRange) EndExclusive() *time.Time {
	if r.End == nil {
		return nil
	}
	y, m, d := r.End.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, r.End.Location())
	return &next
}
