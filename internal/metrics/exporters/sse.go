package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes a MetricsEvent for the events stream.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	s.eventBus.Publish(Snapshot())
}

// Snapshot assembles the current counters into a MetricsEvent.
func Snapshot() events.MetricsEvent {
	cam := metrics.GetCameraSnapshot()
	mem := metrics.GetMemallocSnapshot()
	return events.MetricsEvent{
		EventType:          "metrics",
		PreviewRunning:     cam.Running,
		FramesCaptured:     cam.Captured,
		FramesSkipped:      cam.Skipped,
		FramesDelivered:    cam.Delivered,
		ChunksTotal:        mem.ChunksTotal,
		ChunksUsed:         mem.ChunksUsed,
		BytesReserved:      mem.BytesReserved,
		AllocationFailures: mem.Failures,
		SessionsOpen:       mem.SessionsOpen,
		CMAFreeBytes:       metrics.GetCMAFree(),
	}
}
