package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rankpulse/tracker/internal/model"
)

// Common errors for event repository operations.
var (
	ErrUnknownWebsite = errors.New("website does not exist")
)

// PostgreSQL error code 23503 is foreign_key_violation.
const foreignKeyViolation = "23503"

// InsertEvent stores one tracking event. The row is written in a single
// statement, so it either lands completely or not at all.
func (r *Repository) InsertEvent(ctx context.Context, event *model.TrackingEvent) error {
	query := `
		INSERT INTO events (
			id, session_id, event_type, url,
			element_tag, element_id, element_classes,
			click_x, click_y, screen_resolution, user_agent, ip_address,
			client_timestamp, received_at, website_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.SessionID,
		string(event.EventType),
		event.URL,
		event.ElementTag,
		event.ElementID,
		event.ElementClasses,
		event.ClickX,
		event.ClickY,
		event.ScreenResolution,
		event.UserAgent,
		event.IPAddress,
		event.ClientTimestamp,
		event.ReceivedAt,
		event.WebsiteID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("failed to insert event: %w: %v", ErrUnknownWebsite, err)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// ListEventIPs returns the (ip, event type) pair of every event recorded on
// websites owned by userID. Events without an IP are excluded. Both date
// bounds are inclusive days on received_at.
func (r *Repository) ListEventIPs(ctx context.Context, userID string, dateRange model.DateRange) ([]model.EventIP, error) {
	query := `
		SELECT e.ip_address, e.event_type
		FROM events e
		JOIN websites w ON w.id = e.website_id
		WHERE w.user_id = $1
		  AND e.ip_address IS NOT NULL
	`
	args := []any{userID}
	argIndex := 2

	if dateRange.Start != nil {
		query += fmt.Sprintf(" AND e.received_at >= $%d", argIndex)
		args = append(args, *dateRange.Start)
		argIndex++
	}

	if end := dateRange.EndExclusive(); end != nil {
		query += fmt.Sprintf(" AND e.received_at < $%d", argIndex)
		args = append(args, *end)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list event ips: %w", err)
	}
	defer rows.Close()

	var out []model.EventIP
	for rows.Next() {
		var (
			ip        string
			eventType string
		)
		if err := rows.Scan(&ip, &eventType); err != nil {
			return nil, fmt.Errorf("failed to scan event ip: %w", err)
		}
		out = append(out, model.EventIP{IPAddress: ip, EventType: model.EventType(eventType)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event ips: %w", err)
	}

	return out, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
