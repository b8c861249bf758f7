package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RecordsSaved         uint64
	RecordLookups        uint64
	LookupDurationCount  uint64
	LookupDurationNs     int64
	HarvestedRecords     uint64
	HarvestErrors        uint64
	IndexPublished       uint64
	IndexDropped         uint64
	IndexProcessed       uint64
	IndexFailed          uint64
	IndexSkipped         uint64
	IndexBatchCount      uint64
	IndexBatchTotalItems uint64
	IndexQueueDepth      int64
}

// InMemoryRecorder aggregates metrics in process memory. It backs the
// /metrics endpoint and the assertions in tests.
type InMemoryRecorder struct {
	recordsSaved         uint64
	recordLookups        uint64
	lookupDurationCount  uint64
	lookupDurationNs     int64
	harvestedRecords     uint64
	harvestErrors        uint64
	indexPublished       uint64
	indexDropped         uint64
	indexProcessed       uint64
	indexFailed          uint64
	indexSkipped         uint64
	indexBatchCount      uint64
	indexBatchTotalItems uint64
	indexQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		RecordsSaved:         atomic.LoadUint64(&m.recordsSaved),
		RecordLookups:        atomic.LoadUint64(&m.recordLookups),
		LookupDurationCount:  atomic.LoadUint64(&m.lookupDurationCount),
		LookupDurationNs:     atomic.LoadInt64(&m.lookupDurationNs),
		HarvestedRecords:     atomic.LoadUint64(&m.harvestedRecords),
		HarvestErrors:        atomic.LoadUint64(&m.harvestErrors),
		IndexPublished:       atomic.LoadUint64(&m.indexPublished),
		IndexDropped:         atomic.LoadUint64(&m.indexDropped),
		IndexProcessed:       atomic.LoadUint64(&m.indexProcessed),
		IndexFailed:          atomic.LoadUint64(&m.indexFailed),
		IndexSkipped:         atomic.LoadUint64(&m.indexSkipped),
		IndexBatchCount:      atomic.LoadUint64(&m.indexBatchCount),
		IndexBatchTotalItems: atomic.LoadUint64(&m.indexBatchTotalItems),
		IndexQueueDepth:      atomic.LoadInt64(&m.indexQueueDepth),
	}
}

// IncRecordSaved counts a record write.
func (m *InMemoryRecorder) IncRecordSaved(entity, action string) {
	atomic.AddUint64(&m.recordsSaved, 1)
}

// IncRecordLookup counts an API record lookup.
func (m *InMemoryRecorder) IncRecordLookup(entity string) {
	atomic.AddUint64(&m.recordLookups, 1)
}

// ObserveLookupDuration records lookup duration.
func (m *InMemoryRecorder) ObserveLookupDuration(duration time.Duration) {
	atomic.AddUint64(&m.lookupDurationCount, 1)
	atomic.AddInt64(&m.lookupDurationNs, duration.Nanoseconds())
}

// IncHarvestedRecord counts a harvested record.
func (m *InMemoryRecorder) IncHarvestedRecord(source string) {
	atomic.AddUint64(&m.harvestedRecords, 1)
}

// IncHarvestError counts a harvest failure.
func (m *InMemoryRecorder) IncHarvestError(source string) {
	atomic.AddUint64(&m.harvestErrors, 1)
}

// ObserveHarvestWindow records the duration of one harvest window.
func (m *InMemoryRecorder) ObserveHarvestWindow(source string, duration time.Duration) {}

// IncIndexPublished counts an enqueued index message.
func (m *InMemoryRecorder) IncIndexPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.indexPublished, 1)
		return
	}
	atomic.AddUint64(&m.indexDropped, 1)
}

// IncIndexProcessed counts a consumed index message.
func (m *InMemoryRecorder) IncIndexProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.indexProcessed, 1)
	case "failed":
		atomic.AddUint64(&m.indexFailed, 1)
	default:
		atomic.AddUint64(&m.indexSkipped, 1)
	}
}

// ObserveIndexBatchSize records a consumed batch size.
func (m *InMemoryRecorder) ObserveIndexBatchSize(size int) {
	atomic.AddUint64(&m.indexBatchCount, 1)
	atomic.AddUint64(&m.indexBatchTotalItems, uint64(size))
}

// ObserveIndexBatchDuration records a batch processing duration.
func (m *InMemoryRecorder) ObserveIndexBatchDuration(duration time.Duration) {}

// SetIndexQueueDepth records the current stream length.
func (m *InMemoryRecorder) SetIndexQueueDepth(depth int64) {
	atomic.StoreInt64(&m.indexQueueDepth, depth)
}
