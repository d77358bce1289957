// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rankpulse/tracker/internal/geo"
	"github.com/rankpulse/tracker/internal/metrics"
	"github.com/rankpulse/tracker/internal/model"
)

// Service errors.
var (
	ErrGeoUnavailable = errors.New("geo resolution unavailable")
	ErrMissingUser    = errors.New("user id is required")
)

// EventSource lists the (ip, event type) pairs of a user's events.
type EventSource interface {
	ListEventIPs(ctx context.Context, userID string, dateRange model.DateRange) ([]model.EventIP, error)
}

// GeoResolver resolves a batch of IPs to countries.
type GeoResolver interface {
	Resolve(ctx context.Context, ips []string) (map[string]*model.CountryResolution, error)
}

// WorldViewService rolls a user's events up into per-country aggregates.
type WorldViewService struct {
	events   EventSource
	resolver GeoResolver
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewWorldViewService creates a new WorldViewService.
func NewWorldViewService(events EventSource, resolver GeoResolver, logger *slog.Logger, recorder metrics.Recorder) *WorldViewService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &WorldViewService{
		events:   events,
		resolver: resolver,
		logger:   logger.With("component", "service.worldview"),
		metrics:  recorder,
	}
}

// GetWorldViewData aggregates the user's events and attaches the totals
// the world map needs.
func (s *WorldViewService) GetWorldViewData(ctx context.Context, userID string, dateRange model.DateRange) (*model.WorldViewData, error) {
	aggregates, err := s.Aggregate(ctx, userID, dateRange)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, a := range aggregates {
		total += a.TotalEvents
	}

	return &model.WorldViewData{
		EventsByCountry: aggregates,
		TotalEvents:     total,
		TotalCountries:  len(aggregates),
		DateRange:       dateRange,
	}, nil
}

// Aggregate returns one entry per country with at least one resolved event,
// ordered by total events descending. Events whose IP does not resolve are
// dropped. Start after end is not rejected; the query simply matches nothing.
func (s *WorldViewService) Aggregate(ctx context.Context, userID string, dateRange model.DateRange) ([]model.CountryAggregate, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveAggregationDuration(time.Since(start))
	}()

	rows, err := s.events.ListEventIPs(ctx, userID, dateRange)
	if err != nil {
		return nil, fmt.Errorf("list event ips: %w", err)
	}

	counts := CountByIPAndType(rows)
	if len(counts) == 0 {
		return []model.CountryAggregate{}, nil
	}

	resolutions, err := s.resolve(ctx, distinctIPs(counts))
	if err != nil {
		return nil, err
	}

	byCountry := make(map[string]*model.CountryAggregate)
	for _, c := range counts {
		res := resolutions[c.IPAddress]
		if res == nil {
			continue
		}
		agg, ok := byCountry[res.CountryCode]
		if !ok {
			agg = model.NewCountryAggregate(res)
			byCountry[res.CountryCode] = agg
		}
		agg.Add(c.EventType, c.Count)
	}

	aggregates := make([]model.CountryAggregate, 0, len(byCountry))
	for _, agg := range byCountry {
		aggregates = append(aggregates, *agg)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].TotalEvents != aggregates[j].TotalEvents {
			return aggregates[i].TotalEvents > aggregates[j].TotalEvents
		}
		return aggregates[i].CountryCode < aggregates[j].CountryCode
	})

	s.logger.Debug("aggregated world view",
		"user_id", userID,
		"groups", len(counts),
		"countries", len(aggregates),
	)

	return aggregates, nil
}

// resolve runs one geo batch, retrying it once when the provider was
// unreachable for every lookup.
func (s *WorldViewService) resolve(ctx context.Context, ips []string) (map[string]*model.CountryResolution, error) {
	resolutions, err := s.resolver.Resolve(ctx, ips)
	if errors.Is(err, geo.ErrUnavailable) {
		s.metrics.IncGeoBatchRetry()
		s.logger.Warn("geo batch failed, retrying once", "ips", len(ips), "error", err)
		resolutions, err = s.resolver.Resolve(ctx, ips)
	}

	switch {
	case err == nil:
		return resolutions, nil
	case errors.Is(err, geo.ErrUnavailable):
		s.logger.Error("geo batch failed after retry", "ips", len(ips), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGeoUnavailable, err)
	default:
		return nil, fmt.Errorf("resolve ips: %w", err)
	}
}

// CountByIPAndType collapses raw event rows into per-(ip, type) counts,
// preserving first-seen order.
func CountByIPAndType(rows []model.EventIP) []model.IPEventCount {
	index := make(map[model.EventIP]int, len(rows))
	counts := make([]model.IPEventCount, 0)
	for _, row := range rows {
		if row.IPAddress == "" {
			continue
		}
		if i, ok := index[row]; ok {
			counts[i].Count++
			continue
		}
		index[row] = len(counts)
		counts = append(counts, model.IPEventCount{
			IPAddress: row.IPAddress,
			EventType: row.EventType,
			Count:     1,
		})
	}
	return counts
}

func distinctIPs(counts []model.IPEventCount) []string {
	seen := make(map[string]struct{}, len(counts))
	ips := make([]string, 0, len(counts))
	for _, c := range counts {
		if _, ok := seen[c.IPAddress]; ok {
			continue
		}
		seen[c.IPAddress] = struct{}{}
		ips = append(ips, c.IPAddress)
	}
	return ips
}
