package events

// Event type constants for kelindar/event.
const (
	TypePreviewStateChanged uint32 = iota + 1
	TypePictureTaken
	TypeAllocationFailed
	TypeSessionReleased
	TypeAllocatorReset
	TypeDevice
	TypeParametersChanged
	TypeMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PreviewStateChangedEvent is published whenever the preview pipeline starts
// or stops. The LED manager reacts to it.
type PreviewStateChangedEvent struct {
	State     string `json:"state" example:"running" doc:"Pipeline state: stopped or running"`
	Recording bool   `json:"recording" doc:"Whether video frames are being delivered"`
	Width     int    `json:"width" example:"320" doc:"Capture width"`
	Height    int    `json:"height" example:"240" doc:"Capture height"`
	Device    string `json:"device,omitempty" example:"/dev/video0" doc:"Capture node in use"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PreviewStateChangedEvent.
func (e PreviewStateChangedEvent) Type() uint32 { return TypePreviewStateChanged }

// PictureTakenEvent reports the outcome of a still capture.
type PictureTakenEvent struct {
	Width     int    `json:"width" example:"320" doc:"Picture width"`
	Height    int    `json:"height" example:"240" doc:"Picture height"`
	Bytes     int    `json:"bytes" doc:"Size of the compressed image, 0 if none was produced"`
	Error     string `json:"error,omitempty" doc:"Failure reason"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PictureTakenEvent.
func (e PictureTakenEvent) Type() uint32 { return TypePictureTaken }

// AllocationFailedEvent is published when no chunk fits a request.
type AllocationFailedEvent struct {
	Size      uint32 `json:"size" example:"8192" doc:"Requested size in bytes"`
	Session   int    `json:"session" example:"0" doc:"Requesting session id"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AllocationFailedEvent.
func (e AllocationFailedEvent) Type() uint32 { return TypeAllocationFailed }

// SessionReleasedEvent is published when an allocator session closes.
type SessionReleasedEvent struct {
	Session   int    `json:"session" example:"0" doc:"Closed session id"`
	Freed     int    `json:"freed" example:"2" doc:"Chunks returned to the pool"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionReleasedEvent.
func (e SessionReleasedEvent) Type() uint32 { return TypeSessionReleased }

// AllocatorResetEvent is published after the chunk table is rebuilt.
type AllocatorResetEvent struct {
	Profile    string `json:"profile" example:"android" doc:"Active profile"`
	TotalBytes uint64 `json:"total_bytes" doc:"Sum of all chunk sizes"`
	OverWindow bool   `json:"over_window" doc:"Whether the table exceeds the memory window"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AllocatorResetEvent.
func (e AllocatorResetEvent) Type() uint32 { return TypeAllocatorReset }

// DeviceEvent represents a video4linux hotplug event.
type DeviceEvent struct {
	Action     string `json:"action" example:"add" doc:"Kernel action: add, remove or change"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node"`
	Name       string `json:"name,omitempty" doc:"Driver-reported device name"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceEvent.
func (e DeviceEvent) Type() uint32 { return TypeDevice }

// ParametersChangedEvent is published after camera parameters are applied.
type ParametersChangedEvent struct {
	Source    string `json:"source" example:"file" doc:"Where the change came from: api or file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ParametersChangedEvent.
func (e ParametersChangedEvent) Type() uint32 { return TypeParametersChanged }

// MetricsEvent is a periodic snapshot of pipeline and allocator counters.
type MetricsEvent struct {
	EventType          string  `json:"type" example:"metrics"`
	PreviewRunning     bool    `json:"preview_running"`
	FramesCaptured     float64 `json:"frames_captured"`
	FramesSkipped      float64 `json:"frames_skipped"`
	FramesDelivered    float64 `json:"frames_delivered"`
	ChunksTotal        int     `json:"chunks_total"`
	ChunksUsed         int     `json:"chunks_used"`
	BytesReserved      uint64  `json:"bytes_reserved"`
	AllocationFailures float64 `json:"allocation_failures"`
	SessionsOpen       int     `json:"sessions_open"`
	CMAFreeBytes       uint64  `json:"cma_free_bytes,omitempty"`
}

// Type returns the event type identifier for MetricsEvent.
func (e MetricsEvent) Type() uint32 { return TypeMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
