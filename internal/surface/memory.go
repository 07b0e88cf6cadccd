// Package surface provides an in-process render target for the preview
// pipeline.
package surface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/logging"
)

// ErrNoFrame is returned by snapshot calls before the first frame arrives.
var ErrNoFrame = errors.New("no frame rendered yet")

type slotState int

const (
	slotFree slotState = iota
	slotDequeued
	slotLocked
	slotFilled
)

// Memory is a buffer queue of YV12 frames held in memory. The most recently
// enqueued buffer is kept as the front buffer.
type Memory struct {
	logger logging.Logger

	mu        sync.Mutex
	usage     uint32
	width     int
	height    int
	format    camera.SurfaceFormat
	slots     [][]byte
	state     []slotState
	front     []byte
	frames    uint64
	abandoned bool
}

// NewMemory creates an unconfigured surface with two slots.
func NewMemory() *Memory {
	m := &Memory{logger: logging.GetLogger("surface")}
	_ = m.SetBufferCount(2)
	return m
}

// SetUsage records the usage bits.
func (m *Memory) SetUsage(usage uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return camera.ErrSurfaceGone
	}
	m.usage = usage
	return nil
}

// SetBufferGeometry reallocates every slot for the given geometry.
func (m *Memory) SetBufferGeometry(width, height int, format camera.SurfaceFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return camera.ErrSurfaceGone
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: geometry %dx%d", camera.ErrBadValue, width, height)
	}
	m.width, m.height, m.format = width, height, format
	m.front = nil
	m.allocate(len(m.slots))
	m.logger.Debug("Surface geometry set", "width", width, "height", height)
	return nil
}

// SetBufferCount resizes the queue.
func (m *Memory) SetBufferCount(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return camera.ErrSurfaceGone
	}
	if n < 1 {
		return fmt.Errorf("%w: buffer count %d", camera.ErrBadValue, n)
	}
	m.allocate(n)
	return nil
}

// allocate must be called with mu held.
func (m *Memory) allocate(n int) {
	size := m.width * m.height * 3 / 2
	m.slots = make([][]byte, n)
	m.state = make([]slotState, n)
	for i := range m.slots {
		m.slots[i] = make([]byte, size)
	}
}

// DequeueBuffer hands out a free slot.
func (m *Memory) DequeueBuffer() (camera.BufferHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return 0, camera.ErrSurfaceGone
	}
	for i, st := range m.state {
		if st == slotFree {
			m.state[i] = slotDequeued
			return camera.BufferHandle(i), nil
		}
	}
	return 0, errors.New("no free buffer")
}

// Lock maps a dequeued slot for writing.
func (m *Memory) Lock(h camera.BufferHandle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return nil, camera.ErrSurfaceGone
	}
	if err := m.check(h, slotDequeued); err != nil {
		return nil, err
	}
	m.state[h] = slotLocked
	return m.slots[h], nil
}

// Unlock ends writing to a slot.
func (m *Memory) Unlock(h camera.BufferHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return camera.ErrSurfaceGone
	}
	if err := m.check(h, slotLocked); err != nil {
		return err
	}
	m.state[h] = slotFilled
	return nil
}

// EnqueueBuffer returns a slot to the queue. A slot that was never locked
// is a cancellation and does not replace the front buffer.
func (m *Memory) EnqueueBuffer(h camera.BufferHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abandoned {
		return camera.ErrSurfaceGone
	}
	if int(h) < 0 || int(h) >= len(m.state) || m.state[h] == slotFree {
		return fmt.Errorf("%w: buffer %d not dequeued", camera.ErrInvalidOperation, h)
	}
	filled := m.state[h] == slotFilled
	m.state[h] = slotFree
	if !filled {
		return nil
	}
	m.front = append(m.front[:0], m.slots[h]...)
	m.frames++
	return nil
}

// Abandon makes every later call fail with camera.ErrSurfaceGone, as when
// the consumer of a window goes away.
func (m *Memory) Abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = true
	m.logger.Info("Surface abandoned")
}

// Info describes the surface.
type Info struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Usage     uint32 `json:"usage"`
	Buffers   int    `json:"buffers"`
	Frames    uint64 `json:"frames"`
	Abandoned bool   `json:"abandoned"`
}

// Info reports the surface configuration and the number of frames shown.
func (m *Memory) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Info{
		Width:     m.width,
		Height:    m.height,
		Usage:     m.usage,
		Buffers:   len(m.slots),
		Frames:    m.frames,
		Abandoned: m.abandoned,
	}
}

// Snapshot returns a copy of the front buffer in YV12 with its geometry.
func (m *Memory) Snapshot() ([]byte, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.front) == 0 {
		return nil, 0, 0, ErrNoFrame
	}
	return append([]byte(nil), m.front...), m.width, m.height, nil
}

// SnapshotJPEG encodes the front buffer.
func (m *Memory) SnapshotJPEG(quality int) ([]byte, error) {
	yv12, w, h, err := m.Snapshot()
	if err != nil {
		return nil, err
	}
	// Swapping the chroma planes of YV12 yields I420.
	i420 := make([]byte, len(yv12))
	camera.CopyI420ToYV12(i420, yv12, w, h)
	return camera.JPEGEncoder{}.Encode(i420, w, h, quality)
}

// check must be called with mu held.
func (m *Memory) check(h camera.BufferHandle, want slotState) error {
	if int(h) < 0 || int(h) >= len(m.state) {
		return fmt.Errorf("%w: buffer %d out of range", camera.ErrInvalidOperation, h)
	}
	if m.state[h] != want {
		return fmt.Errorf("%w: buffer %d in wrong state", camera.ErrInvalidOperation, h)
	}
	return nil
}
