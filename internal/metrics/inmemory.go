package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	EventsAccepted uint64
	EventsRejected uint64
	EventsFailed   uint64
	RateLimited    uint64

	GeoCacheHits        uint64
	GeoSkippedNonPublic uint64
	GeoSkippedOverCap   uint64
	GeoLookupsSucceeded uint64
	GeoLookupsFailed    uint64
	GeoBatchRetries     uint64

	AggregationDurationCount   uint64
	AggregationDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	eventsAccepted atomic.Uint64
	eventsRejected atomic.Uint64
	eventsFailed   atomic.Uint64
	rateLimited    atomic.Uint64

	geoCacheHits        atomic.Uint64
	geoSkippedNonPublic atomic.Uint64
	geoSkippedOverCap   atomic.Uint64
	geoLookupsSucceeded atomic.Uint64
	geoLookupsFailed    atomic.Uint64
	geoBatchRetries     atomic.Uint64

	aggregationCount   atomic.Uint64
	aggregationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		EventsAccepted:             m.eventsAccepted.Load(),
		EventsRejected:             m.eventsRejected.Load(),
		EventsFailed:               m.eventsFailed.Load(),
		RateLimited:                m.rateLimited.Load(),
		GeoCacheHits:               m.geoCacheHits.Load(),
		GeoSkippedNonPublic:        m.geoSkippedNonPublic.Load(),
		GeoSkippedOverCap:          m.geoSkippedOverCap.Load(),
		GeoLookupsSucceeded:        m.geoLookupsSucceeded.Load(),
		GeoLookupsFailed:           m.geoLookupsFailed.Load(),
		GeoBatchRetries:            m.geoBatchRetries.Load(),
		AggregationDurationCount:   m.aggregationCount.Load(),
		AggregationDurationTotalNs: m.aggregationTotalNs.Load(),
	}
}

// IncEventIngested counts one ingestion outcome.
func (m *InMemoryRecorder) IncEventIngested(status string) {
	switch status {
	case "accepted":
		m.eventsAccepted.Add(1)
	case "rejected":
		m.eventsRejected.Add(1)
	case "failed":
		m.eventsFailed.Add(1)
	}
}

// IncRateLimited counts a throttled beacon.
func (m *InMemoryRecorder) IncRateLimited() {
	m.rateLimited.Add(1)
}

// AddGeoCacheHits counts IPs answered from the cache.
func (m *InMemoryRecorder) AddGeoCacheHits(n int) {
	m.geoCacheHits.Add(uint64(n))
}

// AddGeoSkipped counts IPs resolved to nothing without a lookup.
func (m *InMemoryRecorder) AddGeoSkipped(reason string, n int) {
	switch reason {
	case "non_public":
		m.geoSkippedNonPublic.Add(uint64(n))
	case "over_cap":
		m.geoSkippedOverCap.Add(uint64(n))
	}
}

// IncGeoLookup counts one external lookup.
func (m *InMemoryRecorder) IncGeoLookup(status string) {
	if status == "success" {
		m.geoLookupsSucceeded.Add(1)
		return
	}
	m.geoLookupsFailed.Add(1)
}

// IncGeoBatchRetry counts a whole-batch retry.
func (m *InMemoryRecorder) IncGeoBatchRetry() {
	m.geoBatchRetries.Add(1)
}

// ObserveAggregationDuration records one aggregation run.
func (m *InMemoryRecorder) ObserveAggregationDuration(duration time.Duration) {
	m.aggregationCount.Add(1)
	m.aggregationTotalNs.Add(duration.Nanoseconds())
}
