package camera

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/metrics"
)

var bootTime = time.Now()

// monotonicNow returns nanoseconds on a monotonic clock.
func monotonicNow() int64 {
	return int64(time.Since(bootTime))
}

type captureSession struct {
	dev    CaptureDevice
	path   string
	width  int
	height int
	format string
	stop   atomic.Bool
	done   chan struct{}
	frame  *frameBuffer
}

// probe opens the first node in ProbePaths that accepts the geometry.
func (c *Camera) probe(width, height int) (CaptureDevice, string, error) {
	if c.opts.DeviceFactory == nil {
		return nil, "", fmt.Errorf("%w: no device factory", ErrNoDevice)
	}

	var lastErr error
	for _, path := range c.opts.ProbePaths {
		dev := c.opts.DeviceFactory()
		c.logger.Debug("Trying capture node", "device", path, "width", width, "height", height)
		if err := dev.Open(path, width, height, c.opts.PixelFormat); err != nil {
			lastErr = err
			continue
		}
		return dev, path, nil
	}
	c.logger.Error("No capture node opened", "paths", c.opts.ProbePaths, "error", lastErr)
	return nil, "", fmt.Errorf("%w: %w", ErrNoDevice, lastErr)
}

// StartPreview starts capturing at the preview size.
func (c *Camera) StartPreview() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startPreviewLocked(c.params.Preview.Size)
}

// startPreviewLocked must be called with lifecycle and mu held.
func (c *Camera) startPreviewLocked(size Size) error {
	if c.session != nil {
		c.logger.Error("Preview already running")
		return ErrInvalidOperation
	}

	w, h := size.Width, size.Height
	if err := checkFrameSize(w, h); err != nil {
		return err
	}
	cb := c.getCallbacks()
	fb := newFrameBuffer(cb, w*h*3/2)

	dev, path, err := c.probe(w, h)
	if err != nil {
		fb.release()
		return err
	}

	if err := dev.Init(); err != nil {
		c.logger.Error("Failed to initialise capture device", "device", path, "error", err)
		if cerr := dev.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture device", "device", path, "error", cerr)
		}
		fb.release()
		return fmt.Errorf("init %s: %w", path, err)
	}

	if err := dev.StartStreaming(); err != nil {
		c.logger.Error("Failed to start streaming", "device", path, "error", err)
		if uerr := dev.Uninit(); uerr != nil {
			c.logger.Warn("Failed to uninitialise capture device", "device", path, "error", uerr)
		}
		if cerr := dev.Close(); cerr != nil {
			c.logger.Warn("Failed to close capture device", "device", path, "error", cerr)
		}
		fb.release()
		return fmt.Errorf("start streaming %s: %w", path, err)
	}

	if dw, dh, changed := c.deviceSize(dev, size); changed {
		if err := checkFrameSize(dw, dh); err != nil {
			c.closeDevice(dev, path)
			fb.release()
			return err
		}
		w, h = dw, dh
		fb.release()
		fb = newFrameBuffer(cb, w*h*3/2)
	}

	s := &captureSession{
		dev:    dev,
		path:   path,
		width:  w,
		height: h,
		format: c.params.Preview.Format,
		done:   make(chan struct{}),
		frame:  fb,
	}
	c.session = s
	c.running.Store(true)
	go c.captureLoop(s)

	c.logger.Info("Preview started",
		"device", path,
		"width", w,
		"height", h,
		"recording", c.recording.Load())
	metrics.SetPreviewRunning(true)
	c.publish(events.PreviewStateChangedEvent{
		State:     string(StateRunning),
		Recording: c.recording.Load(),
		Width:     w,
		Height:    h,
		Device:    path,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}

func (c *Camera) captureLoop(s *captureSession) {
	defer close(s.done)
	for !s.stop.Load() {
		c.captureOnce(s)
	}
	c.logger.Debug("Capture loop exited", "device", s.path)
}

// captureOnce runs one iteration. A panic is contained to the frame.
func (c *Camera) captureOnce(s *captureSession) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic in capture loop", "panic", r)
			c.countSkip(metrics.SkipPanic)
			time.Sleep(c.opts.DequeueRetryDelay)
		}
	}()

	w, h := s.width, s.height
	wh := w * h

	var (
		surf Surface
		buf  BufferHandle
		dst  []byte
	)
	if surf = c.currentSurface(); surf != nil {
		var err error
		buf, err = surf.DequeueBuffer()
		if err != nil {
			if errors.Is(err, ErrSurfaceGone) {
				c.logger.Error("Preview surface abandoned, rendering disabled")
				c.detachSurface(surf)
				return
			}
			c.logger.Warn("Dequeue failed, skipping frame", "error", err)
			c.countSkip(metrics.SkipDequeue)
			time.Sleep(c.opts.DequeueRetryDelay)
			return
		}

		dst, err = surf.Lock(buf)
		if err != nil {
			c.logger.Warn("Failed to lock surface buffer", "error", err)
			if cerr := surf.EnqueueBuffer(buf); cerr != nil {
				c.logger.Warn("Failed to cancel surface buffer", "error", cerr)
			}
			c.countSkip(metrics.SkipLock)
			return
		}
	}

	// returnBuffer gives the surface buffer back without rendering.
	returnBuffer := func() {
		if surf == nil {
			return
		}
		if err := surf.Unlock(buf); err != nil {
			c.logger.Warn("Failed to unlock surface buffer", "error", err)
		}
		if err := surf.EnqueueBuffer(buf); err != nil {
			c.logger.Warn("Failed to enqueue surface buffer", "error", err)
		}
	}

	frame, err := s.dev.GrabFrame()
	if err != nil || len(frame) < wh*2 {
		if err == nil {
			err = fmt.Errorf("short frame: %d bytes", len(frame))
			if rerr := s.dev.ReleaseFrame(); rerr != nil {
				c.logger.Warn("Failed to release frame", "error", rerr)
			}
		}
		c.logger.Warn("Failed to grab frame", "device", s.path, "error", err)
		c.countSkip(metrics.SkipGrab)
		returnBuffer()
		time.Sleep(c.opts.DequeueRetryDelay)
		return
	}
	defer func() {
		if err := s.dev.ReleaseFrame(); err != nil {
			c.logger.Warn("Failed to release frame", "error", err)
		}
	}()

	c.captured.Add(1)
	metrics.IncFramesCaptured()

	fb := s.frame.data
	YUYVToI420(fb, frame, w, h)

	if surf != nil {
		if len(dst) >= wh*3/2 {
			CopyI420ToYV12(dst, fb, w, h)
		} else {
			c.logger.Warn("Surface buffer too small", "have", len(dst), "want", wh*3/2)
		}
		returnBuffer()
		c.countDelivered(metrics.DeliveredSurface)
	}

	cb := c.getCallbacks()
	if cb == nil {
		return
	}

	if c.recording.Load() && c.msgs.has(MsgVideoFrame) {
		cb.DataTimestamp(monotonicNow(), MsgVideoFrame, fb)
		c.countDelivered(metrics.DeliveredVideo)
	}

	if c.msgs.has(MsgPreviewFrame) {
		if s.format == FormatYUV420SP {
			YUYVToNV21(fb, frame, w, h)
		}
		s.frame.lend(func(b []byte) {
			cb.Data(MsgPreviewFrame, b)
		})
		c.countDelivered(metrics.DeliveredPreview)
	}
}

// StopPreview stops capturing and closes the device. It is a no-op when
// the preview is not running. It returns once the capture loop has exited.
func (c *Camera) StopPreview() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopPreview()
}

// stopPreview must be called with lifecycle held and mu not held.
func (c *Camera) stopPreview() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	if s != nil {
		s.stop.Store(true)
	}
	c.mu.Unlock()

	if s == nil {
		return
	}

	<-s.done
	c.running.Store(false)
	c.closeDevice(s.dev, s.path)
	s.frame.release()

	c.logger.Info("Preview stopped", "device", s.path)
	metrics.SetPreviewRunning(false)
	c.publish(events.PreviewStateChangedEvent{
		State:     string(StateStopped),
		Recording: c.recording.Load(),
		Width:     s.width,
		Height:    s.height,
		Device:    s.path,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// closeDevice tears down a streaming device. Failures are logged only.
func (c *Camera) closeDevice(dev CaptureDevice, path string) {
	if err := dev.Uninit(); err != nil {
		c.logger.Warn("Failed to uninitialise capture device", "device", path, "error", err)
	}
	if err := dev.StopStreaming(); err != nil {
		c.logger.Warn("Failed to stop streaming", "device", path, "error", err)
	}
	if err := dev.Close(); err != nil {
		c.logger.Warn("Failed to close capture device", "device", path, "error", err)
	}
}

// deviceSize reports the geometry the driver settled on and whether it
// differs from the requested size.
func (c *Camera) deviceSize(dev CaptureDevice, requested Size) (int, int, bool) {
	dw, dh := dev.Width(), dev.Height()
	if dw <= 0 || dh <= 0 || dw == requested.Width && dh == requested.Height {
		return requested.Width, requested.Height, false
	}
	c.logger.Warn("Driver adjusted capture size",
		"requested", requested.String(),
		"actual", Size{dw, dh}.String())
	return dw, dh, true
}

// PreviewEnabled reports whether the capture loop is running.
func (c *Camera) PreviewEnabled() bool {
	return c.running.Load()
}

// StartRecording restarts capture at the video size with video frames
// delivered. The recording flag stays set even if the restart fails.
func (c *Camera) StartRecording() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopPreview()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording.Store(true)
	c.logger.Info("Starting recording", "size", c.params.Video.Size.String())
	return c.startPreviewLocked(c.params.Video.Size)
}

// StopRecording restarts capture at the preview size.
func (c *Camera) StopRecording() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.recording.Store(false)
	c.stopPreview()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("Stopping recording", "size", c.params.Preview.Size.String())
	return c.startPreviewLocked(c.params.Preview.Size)
}

// RecordingEnabled reports whether video frames are being delivered.
func (c *Camera) RecordingEnabled() bool {
	return c.recording.Load()
}

// ReleaseRecordingFrame is a no-op. Video frames are only valid for the
// duration of the callback.
func (c *Camera) ReleaseRecordingFrame([]byte) {}
