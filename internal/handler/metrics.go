package handler

import (
	"fmt"
	"net/http"

	"github.com/PascalRepond/rero-mef/internal/metrics"
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

	writeMetric(w, "mef_records_saved_total %d\n", snap.RecordsSaved)
	writeMetric(w, "mef_record_lookups_total %d\n", snap.RecordLookups)
	writeMetric(w, "mef_record_lookup_duration_seconds_count %d\n", snap.LookupDurationCount)
	writeMetric(w, "mef_record_lookup_duration_seconds_sum %.6f\n", float64(snap.LookupDurationNs)/1e9)

	writeMetric(w, "mef_harvested_records_total %d\n", snap.HarvestedRecords)
	writeMetric(w, "mef_harvest_errors_total %d\n", snap.HarvestErrors)

	writeMetric(w, "mef_index_tasks_published_total{status=\"success\"} %d\n", snap.IndexPublished)
	writeMetric(w, "mef_index_tasks_published_total{status=\"dropped\"} %d\n", snap.IndexDropped)

	writeMetric(w, "mef_index_tasks_processed_total{status=\"success\"} %d\n", snap.IndexProcessed)
	writeMetric(w, "mef_index_tasks_processed_total{status=\"failed\"} %d\n", snap.IndexFailed)
	writeMetric(w, "mef_index_tasks_processed_total{status=\"skipped\"} %d\n", snap.IndexSkipped)

	writeMetric(w, "mef_index_batches_total %d\n", snap.IndexBatchCount)
	writeMetric(w, "mef_index_batch_items_total %d\n", snap.IndexBatchTotalItems)
	writeMetric(w, "mef_index_queue_depth %d\n", snap.IndexQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
