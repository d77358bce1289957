package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncEventIngested is a no-op.
func (n *NoopRecorder) IncEventIngested(status string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// AddGeoCacheHits is a no-op.
func (n *NoopRecorder) AddGeoCacheHits(count int) {}

// AddGeoSkipped is a no-op.
func (n *NoopRecorder) AddGeoSkipped(reason string, count int) {}

// IncGeoLookup is a no-op.
func (n *NoopRecorder) IncGeoLookup(status string) {}

// IncGeoBatchRetry is a no-op.
func (n *NoopRecorder) IncGeoBatchRetry() {}

// ObserveAggregationDuration is a no-op.
func (n *NoopRecorder) ObserveAggregationDuration(duration time.Duration) {}
