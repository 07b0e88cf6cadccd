package camera

import (
	"sync"
	"sync/atomic"

	"github.com/smazurov/spearcam/internal/logging"
)

// Host is the daemon's Callbacks implementation. It keeps the last
// compressed picture and counts what it receives.
type Host struct {
	logger logging.Logger

	mu      sync.Mutex
	picture []byte
	raw     int

	notifies      atomic.Uint64
	previewFrames atomic.Uint64
	videoFrames   atomic.Uint64
}

// NewHost creates a Host.
func NewHost(logger logging.Logger) *Host {
	if logger == nil {
		logger = logging.GetLogger("camera")
	}
	return &Host{logger: logger}
}

// Notify implements Callbacks.
func (h *Host) Notify(msg MsgType, ext1, ext2 int32) {
	h.notifies.Add(1)
	h.logger.Debug("Camera notify", "msg", msg.String(), "ext1", ext1, "ext2", ext2)
}

// Data implements Callbacks.
func (h *Host) Data(msg MsgType, data []byte) {
	switch msg {
	case MsgPreviewFrame:
		h.previewFrames.Add(1)
	case MsgCompressedImage:
		h.mu.Lock()
		h.picture = append(h.picture[:0:0], data...)
		h.mu.Unlock()
		h.logger.Info("Received compressed picture", "bytes", len(data))
	case MsgRawImage:
		h.mu.Lock()
		h.raw = len(data)
		h.mu.Unlock()
		h.logger.Info("Received raw picture", "bytes", len(data))
	default:
		h.logger.Debug("Camera data", "msg", msg.String(), "bytes", len(data))
	}
}

// DataTimestamp implements Callbacks.
func (h *Host) DataTimestamp(_ int64, msg MsgType, _ []byte) {
	if msg == MsgVideoFrame {
		h.videoFrames.Add(1)
	}
}

// RequestMemory implements Callbacks. The camera allocates its own buffers.
func (h *Host) RequestMemory(int) []byte {
	return nil
}

// LastPicture returns a copy of the most recent compressed picture, or nil.
func (h *Host) LastPicture() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.picture == nil {
		return nil
	}
	return append([]byte(nil), h.picture...)
}

// LastRawSize returns the size of the most recent raw picture.
func (h *Host) LastRawSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.raw
}

// Counts returns the number of notifies, preview frames and video frames
// received.
func (h *Host) Counts() (notifies, preview, video uint64) {
	return h.notifies.Load(), h.previewFrames.Load(), h.videoFrames.Load()
}
