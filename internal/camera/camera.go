// Package camera drives a V4L2 capture device through the preview,
// recording and still-picture states of a camera HAL. Frames are converted
// to planar 4:2:0, rendered into a double-buffered surface and handed to
// host callbacks.
package camera

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/metrics"
)

// State is the pipeline state.
type State string

// Pipeline states.
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const (
	defaultBufferCount       = 2
	defaultDequeueRetryDelay = 5 * time.Millisecond
)

// DefaultProbePaths returns /dev/video0 through /dev/video9.
func DefaultProbePaths() []string {
	paths := make([]string, 10)
	for i := range paths {
		paths[i] = fmt.Sprintf("/dev/video%d", i)
	}
	return paths
}

// Options configures a Camera.
type Options struct {
	DeviceFactory     DeviceFactory
	Encoder           Encoder
	Metadata          MetadataGenerator
	EventBus          EventPublisher
	Logger            logging.Logger
	ProbePaths        []string
	PixelFormat       uint32
	BufferCount       int
	DequeueRetryDelay time.Duration
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	State           State             `json:"state"`
	Recording       bool              `json:"recording"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	Device          string            `json:"device,omitempty"`
	SurfaceAttached bool              `json:"surface_attached"`
	Messages        []string          `json:"messages"`
	FramesCaptured  uint64            `json:"frames_captured"`
	FramesDelivered uint64            `json:"frames_delivered"`
	Skipped         map[string]uint64 `json:"skipped"`
}

type gpsFix struct {
	date   string
	hour   int
	minute int
	second int
	method string
}

// Camera is the preview pipeline.
type Camera struct {
	opts   Options
	logger logging.Logger

	// lifecycle serialises start, stop and picture transitions. It is held
	// until a stopping capture loop has exited and its device is closed.
	lifecycle sync.Mutex

	// mu guards the fields below. It is never held while waiting on the
	// capture loop.
	mu      sync.Mutex
	params  Parameters
	gps     gpsFix
	session *captureSession

	surfaceMu sync.Mutex
	surface   Surface

	cbMu      sync.RWMutex
	callbacks Callbacks

	msgs      msgMask
	running   atomic.Bool
	recording atomic.Bool

	captured  atomic.Uint64
	delivered atomic.Uint64
	skipped   sync.Map
}

// New creates a stopped camera with default parameters.
func New(opts Options) *Camera {
	if len(opts.ProbePaths) == 0 {
		opts.ProbePaths = DefaultProbePaths()
	}
	if opts.PixelFormat == 0 {
		opts.PixelFormat = PixelFormatYUYV
	}
	if opts.BufferCount <= 0 {
		opts.BufferCount = defaultBufferCount
	}
	if opts.DequeueRetryDelay <= 0 {
		opts.DequeueRetryDelay = defaultDequeueRetryDelay
	}
	if opts.Encoder == nil {
		opts.Encoder = JPEGEncoder{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("camera")
	}

	c := &Camera{opts: opts, logger: opts.Logger}
	if err := c.SetParameters(DefaultParameters()); err != nil {
		c.logger.Error("Failed to set default parameters", "error", err)
	}
	return c
}

// SetCallbacks installs the host callbacks.
func (c *Camera) SetCallbacks(cb Callbacks) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = cb
}

func (c *Camera) getCallbacks() Callbacks {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return c.callbacks
}

// EnableMsgType enables delivery of the given message bits.
func (c *Camera) EnableMsgType(msg MsgType) {
	c.msgs.enable(msg)
}

// DisableMsgType disables delivery of the given message bits.
func (c *Camera) DisableMsgType(msg MsgType) {
	c.msgs.disable(msg)
}

// MsgTypeEnabled reports whether any of the given bits is enabled.
func (c *Camera) MsgTypeEnabled(msg MsgType) bool {
	return c.msgs.has(msg)
}

// SetPreviewWindow attaches s as the render target. A running preview is
// stopped first and restarted once the surface is configured.
func (c *Camera) SetPreviewWindow(s Surface) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	wasRunning := c.PreviewEnabled()
	if wasRunning {
		c.logger.Info("Stopping preview for window change")
		c.stopPreview()
	}

	c.surfaceMu.Lock()
	c.surface = s
	c.surfaceMu.Unlock()

	if s == nil {
		c.logger.Warn("Preview window is nil, rendering disabled")
		return nil
	}

	size := c.GetParameters().Preview.Size
	if err := s.SetUsage(UsageTexture | UsageRender | UsageReadRarely); err != nil {
		c.logger.Warn("Failed to set surface usage", "error", err)
	}
	if err := s.SetBufferGeometry(size.Width, size.Height, SurfaceYV12); err != nil {
		c.logger.Warn("Failed to set surface geometry", "size", size.String(), "error", err)
	}
	if err := s.SetBufferCount(c.opts.BufferCount); err != nil {
		c.logger.Error("Failed to set surface buffer count", "count", c.opts.BufferCount, "error", err)
		if errors.Is(err, ErrSurfaceGone) {
			c.logger.Error("Preview surface abandoned")
			c.detachSurface(s)
		}
		return fmt.Errorf("set buffer count: %w", err)
	}

	if wasRunning {
		c.logger.Info("Resuming preview")
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.startPreviewLocked(c.params.Preview.Size)
	}
	return nil
}

func (c *Camera) currentSurface() Surface {
	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()
	return c.surface
}

// detachSurface clears the surface only if it is still s.
func (c *Camera) detachSurface(s Surface) {
	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()
	if c.surface == s {
		c.surface = nil
	}
}

// SetParameters validates p as a whole and applies it. Nothing is applied
// when validation fails.
func (c *Camera) SetParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		c.logger.Error("Rejected camera parameters", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.GPS != nil {
		if p.GPS.ProcessingMethod != "" {
			c.gps.method = p.GPS.ProcessingMethod
			c.logger.Debug("Set GPS processing method", "method", c.gps.method)
		}
		if p.GPS.Timestamp != 0 {
			t := time.Unix(p.GPS.Timestamp, 0).UTC()
			c.gps.date = t.Format("2006:01:02")
			c.gps.hour, c.gps.minute, c.gps.second = t.Clock()
			c.logger.Debug("Set GPS timestamp",
				"date", c.gps.date,
				"time", fmt.Sprintf("%02d:%02d:%02d", c.gps.hour, c.gps.minute, c.gps.second))
		}
	}

	c.logger.Debug("Applying parameters",
		"video_size", p.Video.Size.String(),
		"picture_size", p.Picture.Size.String(),
		"preview_size", p.Preview.Size.String(),
		"frame_rate", p.Preview.FrameRate)
	c.params = p.Clone()

	if s := c.currentSurface(); s != nil {
		if c.session == nil {
			size := c.params.Preview.Size
			if err := s.SetBufferGeometry(size.Width, size.Height, SurfaceYV12); err != nil {
				c.logger.Warn("Failed to set surface geometry", "size", size.String(), "error", err)
			}
		} else {
			c.params.Preview.Size = Size{Width: c.session.width, Height: c.session.height}
		}
	}
	return nil
}

// GetParameters returns a copy of the current parameters.
func (c *Camera) GetParameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

// SendCommand is not supported.
func (c *Camera) SendCommand(cmd, arg1, arg2 int32) error {
	return fmt.Errorf("%w: command %d", ErrBadValue, cmd)
}

// AutoFocus reports focus success asynchronously. The lens is fixed.
func (c *Camera) AutoFocus() error {
	go func() {
		if !c.msgs.has(MsgFocus) {
			return
		}
		if cb := c.getCallbacks(); cb != nil {
			cb.Notify(MsgFocus, 1, 0)
		}
	}()
	return nil
}

// CancelAutoFocus is a no-op.
func (c *Camera) CancelAutoFocus() error {
	return nil
}

// CancelPicture is a no-op.
func (c *Camera) CancelPicture() error {
	return nil
}

// Release stops the preview.
func (c *Camera) Release() {
	c.StopPreview()
}

// Status reports the pipeline state.
func (c *Camera) Status() Status {
	c.mu.Lock()
	st := Status{
		State:     StateStopped,
		Recording: c.recording.Load(),
		Width:     c.params.Preview.Size.Width,
		Height:    c.params.Preview.Size.Height,
	}
	if c.session != nil {
		st.State = StateRunning
		st.Width, st.Height = c.session.width, c.session.height
		st.Device = c.session.path
	}
	c.mu.Unlock()

	st.SurfaceAttached = c.currentSurface() != nil
	st.Messages = c.msgs.load().Names()
	st.FramesCaptured = c.captured.Load()
	st.FramesDelivered = c.delivered.Load()
	st.Skipped = make(map[string]uint64)
	c.skipped.Range(func(k, v any) bool {
		st.Skipped[k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	return st
}

func (c *Camera) countSkip(reason string) {
	v, _ := c.skipped.LoadOrStore(reason, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
	metrics.IncFramesSkipped(reason)
}

func (c *Camera) countDelivered(kind string) {
	c.delivered.Add(1)
	metrics.IncFramesDelivered(kind)
}

func (c *Camera) publish(ev events.Event) {
	if c.opts.EventBus != nil {
		c.opts.EventBus.Publish(ev)
	}
}
