package handler

import (
	"fmt"
	"net/http"

	"github.com/rankpulse/tracker/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "rankpulse_events_ingested_total{status=\"accepted\"} %d\n", snap.EventsAccepted)
	writeMetric(w, "rankpulse_events_ingested_total{status=\"rejected\"} %d\n", snap.EventsRejected)
	writeMetric(w, "rankpulse_events_ingested_total{status=\"failed\"} %d\n", snap.EventsFailed)
	writeMetric(w, "rankpulse_rate_limited_total %d\n", snap.RateLimited)

	writeMetric(w, "rankpulse_geo_cache_hits_total %d\n", snap.GeoCacheHits)
	writeMetric(w, "rankpulse_geo_skipped_total{reason=\"non_public\"} %d\n", snap.GeoSkippedNonPublic)
	writeMetric(w, "rankpulse_geo_skipped_total{reason=\"over_cap\"} %d\n", snap.GeoSkippedOverCap)
	writeMetric(w, "rankpulse_geo_lookups_total{status=\"success\"} %d\n", snap.GeoLookupsSucceeded)
	writeMetric(w, "rankpulse_geo_lookups_total{status=\"failed\"} %d\n", snap.GeoLookupsFailed)
	writeMetric(w, "rankpulse_geo_batch_retries_total %d\n", snap.GeoBatchRetries)

	writeMetric(w, "rankpulse_aggregation_duration_seconds_count %d\n", snap.AggregationDurationCount)
	writeMetric(w, "rankpulse_aggregation_duration_seconds_sum %.6f\n", float64(snap.AggregationDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
