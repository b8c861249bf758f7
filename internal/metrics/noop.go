package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRecordSaved is a no-op.
func (n *NoopRecorder) IncRecordSaved(entity, action string) {}

// IncRecordLookup is a no-op.
func (n *NoopRecorder) IncRecordLookup(entity string) {}

// ObserveLookupDuration is a no-op.
func (n *NoopRecorder) ObserveLookupDuration(duration time.Duration) {}

// IncHarvestedRecord is a no-op.
func (n *NoopRecorder) IncHarvestedRecord(source string) {}

// IncHarvestError is a no-op.
func (n *NoopRecorder) IncHarvestError(source string) {}

// ObserveHarvestWindow is a no-op.
func (n *NoopRecorder) ObserveHarvestWindow(source string, duration time.Duration) {}

// IncIndexPublished is a no-op.
func (n *NoopRecorder) IncIndexPublished(status string) {}

// IncIndexProcessed is a no-op.
func (n *NoopRecorder) IncIndexProcessed(status string) {}

// ObserveIndexBatchSize is a no-op.
func (n *NoopRecorder) ObserveIndexBatchSize(size int) {}

// ObserveIndexBatchDuration is a no-op.
func (n *NoopRecorder) ObserveIndexBatchDuration(duration time.Duration) {}

// SetIndexQueueDepth is a no-op.
func (n *NoopRecorder) SetIndexQueueDepth(depth int64) {}
