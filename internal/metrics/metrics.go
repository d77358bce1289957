// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Ingestion metrics
	IncEventIngested(status string) // status: "accepted", "rejected", "failed"
	IncRateLimited()

	// Geo resolution metrics
	AddGeoCacheHits(n int)
	AddGeoSkipped(reason string, n int) // reason: "non_public", "over_cap"
	IncGeoLookup(status string)         // status: "success", "failed"
	IncGeoBatchRetry()

	// Aggregation metrics
	ObserveAggregationDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
