package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons.
const (
	SkipDequeue = "dequeue"
	SkipLock    = "lock"
	SkipGrab    = "grab"
	SkipPanic   = "panic"
)

// Delivery kinds.
const (
	DeliveredPreview = "preview"
	DeliveredVideo   = "video"
	DeliveredSurface = "surface"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "frames_captured_total",
		Help:      "Frames grabbed from the capture device",
	})

	framesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "frames_skipped_total",
		Help:      "Capture loop iterations abandoned, by reason",
	}, []string{"reason"})

	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "frames_delivered_total",
		Help:      "Frames handed to callbacks or the surface, by kind",
	}, []string{"kind"})

	previewRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "preview_running",
		Help:      "1 while the preview pipeline is running",
	})

	picturesTaken = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "pictures_total",
		Help:      "Still captures, by result",
	}, []string{"result"})

	cameraCache   CameraSnapshot
	cameraCacheMu sync.RWMutex
)

// CameraSnapshot holds the last reported pipeline counters.
type CameraSnapshot struct {
	Running   bool
	Captured  float64
	Skipped   float64
	Delivered float64
}

// IncFramesCaptured counts one grabbed frame.
func IncFramesCaptured() {
	framesCaptured.Inc()
	updateCamera(func(s *CameraSnapshot) { s.Captured++ })
}

// IncFramesSkipped counts one abandoned loop iteration.
func IncFramesSkipped(reason string) {
	framesSkipped.WithLabelValues(reason).Inc()
	updateCamera(func(s *CameraSnapshot) { s.Skipped++ })
}

// IncFramesDelivered counts one frame handed to a consumer.
func IncFramesDelivered(kind string) {
	framesDelivered.WithLabelValues(kind).Inc()
	updateCamera(func(s *CameraSnapshot) { s.Delivered++ })
}

// SetPreviewRunning records whether the preview pipeline is running.
func SetPreviewRunning(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	previewRunning.Set(v)
	updateCamera(func(s *CameraSnapshot) { s.Running = running })
}

// IncPictures counts one still capture with the given result label.
func IncPictures(result string) {
	picturesTaken.WithLabelValues(result).Inc()
}

// GetCameraSnapshot returns the last reported pipeline counters.
func GetCameraSnapshot() CameraSnapshot {
	cameraCacheMu.RLock()
	defer cameraCacheMu.RUnlock()
	return cameraCache
}

func updateCamera(update func(*CameraSnapshot)) {
	cameraCacheMu.Lock()
	defer cameraCacheMu.Unlock()
	update(&cameraCache)
}
