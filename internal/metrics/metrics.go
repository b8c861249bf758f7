// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Record pipeline metrics
	IncRecordSaved(entity, action string)
	IncRecordLookup(entity string)
	ObserveLookupDuration(duration time.Duration)

	// Harvest metrics
	IncHarvestedRecord(source string)
	IncHarvestError(source string)
	ObserveHarvestWindow(source string, duration time.Duration)

	// Index pipeline metrics
	IncIndexPublished(status string) // status: "success" or "dropped"
	IncIndexProcessed(status string) // status: "success", "failed", "skipped"
	ObserveIndexBatchSize(size int)
	ObserveIndexBatchDuration(duration time.Duration)
	SetIndexQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
