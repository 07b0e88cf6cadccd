package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cmaTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "cma_total_bytes",
		Help:      "Contiguous memory allocator pool size from /proc/meminfo",
	})

	cmaFree = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "cma_free_bytes",
		Help:      "Free contiguous memory from /proc/meminfo",
	})

	cmaFreeCache atomic.Uint64
)

// SetCMA records the kernel CMA pool size and free bytes.
func SetCMA(total, free uint64) {
	cmaTotal.Set(float64(total))
	cmaFree.Set(float64(free))
	cmaFreeCache.Store(free)
}

// GetCMAFree returns the last reported free CMA bytes.
func GetCMAFree() uint64 {
	return cmaFreeCache.Load()
}
