//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultBufferCount is the number of mmap buffers requested by Init.
const DefaultBufferCount = 4

var (
	// ErrNotCapture is returned when a node cannot stream video capture.
	ErrNotCapture = errors.New("not a streaming video capture device")
	// ErrFormatRejected is returned when the driver substitutes another pixel format.
	ErrFormatRejected = errors.New("pixel format not supported by driver")
	// ErrTimeout is returned when no frame arrives within the grab timeout.
	ErrTimeout = errors.New("timed out waiting for frame")
	// ErrNotOpen is returned by operations on a closed device.
	ErrNotOpen = errors.New("device not open")
	// ErrNoFrameHeld is returned by ReleaseFrame without a prior GrabFrame.
	ErrNoFrameHeld = errors.New("no frame held")
)

// Capture streams frames from a V4L2 capture node through mmap buffers.
// It is not safe for concurrent use.
type Capture struct {
	fd        int
	path      string
	width     int
	height    int
	pixfmt    uint32
	buffers   [][]byte
	held      int
	streaming bool
	count     int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewCapture returns an unopened capture device.
func NewCapture() *Capture {
	return &Capture{
		fd:      -1,
		held:    -1,
		count:   DefaultBufferCount,
		timeout: 2 * time.Second,
		logger:  slog.With("component", "linuxav"),
	}
}

// SetBufferCount changes the number of buffers requested by the next Init.
func (c *Capture) SetBufferCount(n int) {
	if n > 0 {
		c.count = n
	}
}

// SetTimeout changes how long GrabFrame waits for a frame.
func (c *Capture) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Width is the frame width negotiated with the driver.
func (c *Capture) Width() int { return c.width }

// Height is the frame height negotiated with the driver.
func (c *Capture) Height() int { return c.height }

// Path is the opened device node.
func (c *Capture) Path() string { return c.path }

// Open opens path and negotiates width x height in pixelFormat. The driver
// may adjust the geometry; Width and Height report what it chose.
func (c *Capture) Open(path string, width, height int, pixelFormat uint32) error {
	if c.fd >= 0 {
		return fmt.Errorf("%s already open", c.path)
	}
	fd, err := open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	vcap, err := queryCap(fd)
	if err != nil {
		_ = closeFD(fd)
		return err
	}
	caps := vcap.effectiveCaps()
	if caps&capVideoCapture == 0 || caps&capStreaming == 0 {
		_ = closeFD(fd)
		return fmt.Errorf("%s: %w", path, ErrNotCapture)
	}

	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix.width = uint32(width)
	f.pix.height = uint32(height)
	f.pix.pixelformat = pixelFormat
	f.pix.field = fieldAny
	if err := ioctl(fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		_ = closeFD(fd)
		return fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	if f.pix.pixelformat != pixelFormat {
		_ = closeFD(fd)
		return fmt.Errorf("%w: wanted %s, driver offered %s",
			ErrFormatRejected, FormatFourCC(pixelFormat), FormatFourCC(f.pix.pixelformat))
	}

	c.fd = fd
	c.path = path
	c.width = int(f.pix.width)
	c.height = int(f.pix.height)
	c.pixfmt = pixelFormat
	c.logger.Debug("Opened capture device", "path", path,
		"card", cstr(vcap.card[:]), "width", c.width, "height", c.height,
		"format", FormatFourCC(pixelFormat))
	return nil
}

// Init requests, maps and queues the capture buffers.
func (c *Capture) Init() error {
	if c.fd < 0 {
		return ErrNotOpen
	}
	req := v4l2RequestBuffers{
		count:  uint32(c.count),
		typ:    bufTypeVideoCapture,
		memory: memoryMmap,
	}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	if req.count == 0 {
		return fmt.Errorf("VIDIOC_REQBUFS: driver granted no buffers")
	}

	c.buffers = make([][]byte, 0, req.count)
	for i := range req.count {
		buf := v4l2Buffer{index: i, typ: bufTypeVideoCapture, memory: memoryMmap}
		if err := ioctl(c.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			_ = c.unmap()
			return fmt.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}
		mem, err := unix.Mmap(c.fd, buf.offset(), int(buf.length),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			_ = c.unmap()
			return fmt.Errorf("mmap buffer %d: %w", i, err)
		}
		c.buffers = append(c.buffers, mem)
		if err := c.queue(i); err != nil {
			_ = c.unmap()
			return err
		}
	}
	return nil
}

// StartStreaming turns the stream on.
func (c *Capture) StartStreaming() error {
	if c.fd < 0 {
		return ErrNotOpen
	}
	typ := int32(bufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	c.streaming = true
	return nil
}

// GrabFrame waits for the next filled buffer and returns its payload. The
// slice aliases the mmap buffer and is valid until ReleaseFrame.
func (c *Capture) GrabFrame() ([]byte, error) {
	if c.fd < 0 {
		return nil, ErrNotOpen
	}
	if c.held >= 0 {
		if err := c.ReleaseFrame(); err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(c.timeout)
	for {
		buf := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMmap}
		err := ioctl(c.fd, vidiocDqbuf, unsafe.Pointer(&buf))
		if err == nil {
			if int(buf.index) >= len(c.buffers) {
				return nil, fmt.Errorf("VIDIOC_DQBUF: index %d out of range", buf.index)
			}
			c.held = int(buf.index)
			mem := c.buffers[buf.index]
			n := min(int(buf.bytesused), len(mem))
			return mem[:n], nil
		}
		if !errors.Is(err, unix.EAGAIN) {
			return nil, fmt.Errorf("VIDIOC_DQBUF: %w", err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, int(remaining.Milliseconds())+1); err != nil && !errors.Is(err, unix.EINTR) {
			return nil, fmt.Errorf("poll: %w", err)
		}
	}
}

// ReleaseFrame hands the last grabbed buffer back to the driver.
func (c *Capture) ReleaseFrame() error {
	if c.held < 0 {
		return ErrNoFrameHeld
	}
	idx := c.held
	c.held = -1
	return c.queue(uint32(idx))
}

// StopStreaming turns the stream off. Queued buffers are returned to the
// application by the driver.
func (c *Capture) StopStreaming() error {
	if c.fd < 0 {
		return ErrNotOpen
	}
	if !c.streaming {
		return nil
	}
	typ := int32(bufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	c.streaming = false
	c.held = -1
	return nil
}

// Uninit unmaps and frees the capture buffers, stopping the stream first
// when it is still on.
func (c *Capture) Uninit() error {
	if c.fd < 0 {
		return ErrNotOpen
	}
	if c.streaming {
		if err := c.StopStreaming(); err != nil {
			c.logger.Warn("Stream off failed during uninit", "path", c.path, "error", err)
		}
	}
	return c.unmap()
}

// Close releases the device node.
func (c *Capture) Close() error {
	if c.fd < 0 {
		return nil
	}
	if len(c.buffers) > 0 {
		_ = c.Uninit()
	}
	err := closeFD(c.fd)
	c.fd = -1
	c.held = -1
	c.streaming = false
	return err
}

func (c *Capture) queue(index uint32) error {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

func (c *Capture) unmap() error {
	var errs []error
	for i, mem := range c.buffers {
		if err := unix.Munmap(mem); err != nil {
			errs = append(errs, fmt.Errorf("munmap buffer %d: %w", i, err))
		}
	}
	c.buffers = nil
	c.held = -1

	req := v4l2RequestBuffers{typ: bufTypeVideoCapture, memory: memoryMmap}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		errs = append(errs, fmt.Errorf("VIDIOC_REQBUFS 0: %w", err))
	}
	return errors.Join(errs...)
}
