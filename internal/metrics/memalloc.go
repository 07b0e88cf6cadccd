// Package metrics provides Prometheus metrics for the allocator, the
// preview pipeline and the host.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spearcam"

var (
	memallocChunksTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "chunks_total",
		Help:      "Number of chunks in the active allocation table",
	})

	memallocChunksUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "chunks_used",
		Help:      "Number of chunks currently granted",
	})

	memallocBytesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "bytes_total",
		Help:      "Sum of all chunk sizes in bytes",
	})

	memallocBytesReserved = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "bytes_reserved",
		Help:      "Bytes held by granted chunks",
	})

	memallocFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "allocation_failures_total",
		Help:      "Allocation requests no free chunk could satisfy",
	})

	memallocSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "memalloc",
		Name:      "sessions_open",
		Help:      "Open allocator sessions",
	})

	memallocCache   MemallocSnapshot
	memallocCacheMu sync.RWMutex
)

// MemallocSnapshot holds the last reported allocator values.
type MemallocSnapshot struct {
	ChunksTotal   int
	ChunksUsed    int
	BytesTotal    uint64
	BytesReserved uint64
	Failures      float64
	SessionsOpen  int
}

// SetMemallocTable records the size of the active chunk table.
func SetMemallocTable(chunks int, bytes uint64) {
	memallocChunksTotal.Set(float64(chunks))
	memallocBytesTotal.Set(float64(bytes))
	updateMemalloc(func(s *MemallocSnapshot) {
		s.ChunksTotal = chunks
		s.BytesTotal = bytes
	})
}

// SetMemallocUsage records how many chunks and bytes are granted.
func SetMemallocUsage(used int, reserved uint64) {
	memallocChunksUsed.Set(float64(used))
	memallocBytesReserved.Set(float64(reserved))
	updateMemalloc(func(s *MemallocSnapshot) {
		s.ChunksUsed = used
		s.BytesReserved = reserved
	})
}

// IncAllocationFailures counts one unsatisfied allocation.
func IncAllocationFailures() {
	memallocFailures.Inc()
	updateMemalloc(func(s *MemallocSnapshot) { s.Failures++ })
}

// SetSessionsOpen records the number of open allocator sessions.
func SetSessionsOpen(n int) {
	memallocSessionsOpen.Set(float64(n))
	updateMemalloc(func(s *MemallocSnapshot) { s.SessionsOpen = n })
}

// GetMemallocSnapshot returns the last reported allocator values.
func GetMemallocSnapshot() MemallocSnapshot {
	memallocCacheMu.RLock()
	defer memallocCacheMu.RUnlock()
	return memallocCache
}

func updateMemalloc(update func(*MemallocSnapshot)) {
	memallocCacheMu.Lock()
	defer memallocCacheMu.Unlock()
	update(&memallocCache)
}
