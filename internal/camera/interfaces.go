package camera

import (
	"time"

	"github.com/smazurov/spearcam/internal/events"
)

// PixelFormatYUYV is the V4L2 fourcc for packed YUV 4:2:2.
const PixelFormatYUYV uint32 = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24

// CaptureDevice is a streaming video source. GrabFrame blocks until a frame
// is ready and the returned slice stays valid until ReleaseFrame.
type CaptureDevice interface {
	Open(path string, width, height int, pixelFormat uint32) error
	Init() error
	StartStreaming() error
	GrabFrame() ([]byte, error)
	ReleaseFrame() error
	StopStreaming() error
	Uninit() error
	Close() error
	Width() int
	Height() int
}

// DeviceFactory returns a fresh, unopened capture device.
type DeviceFactory func() CaptureDevice

// SurfaceFormat is the pixel layout of surface buffers.
type SurfaceFormat int

// Surface formats.
const (
	SurfaceYV12 SurfaceFormat = iota + 1
	SurfaceI420
)

// Surface usage bits.
const (
	UsageTexture    uint32 = 0x100
	UsageRender     uint32 = 0x200
	UsageReadRarely uint32 = 0x2
)

// BufferHandle identifies a dequeued surface buffer.
type BufferHandle int

// Surface is a buffer queue the preview renders into. Implementations
// return ErrSurfaceGone once the consumer has gone away.
type Surface interface {
	SetUsage(usage uint32) error
	SetBufferGeometry(width, height int, format SurfaceFormat) error
	SetBufferCount(n int) error
	DequeueBuffer() (BufferHandle, error)
	Lock(h BufferHandle) ([]byte, error)
	Unlock(h BufferHandle) error
	EnqueueBuffer(h BufferHandle) error
}

// Callbacks receives notifications and frame data. Methods are called on
// the capture goroutine and must not retain data after returning.
type Callbacks interface {
	Notify(msg MsgType, ext1, ext2 int32)
	Data(msg MsgType, data []byte)
	DataTimestamp(timestamp int64, msg MsgType, data []byte)
	// RequestMemory returns a buffer of size bytes, or nil to let the
	// camera allocate one itself.
	RequestMemory(size int) []byte
}

// GPSInfo is the location attached to a still picture.
type GPSInfo struct {
	Latitude         float64
	Longitude        float64
	Altitude         float64
	Hour             int
	Minute           int
	Second           int
	Date             string
	ProcessingMethod string
}

// PictureInfo describes a still capture for metadata generation.
type PictureInfo struct {
	Width       int
	Height      int
	Orientation int
	Time        time.Time
	Thumbnail   []byte
	ThumbWidth  int
	ThumbHeight int
	GPS         *GPSInfo
}

// MetadataGenerator produces the APP1 segment spliced into a JPEG.
type MetadataGenerator interface {
	Generate(info PictureInfo) ([]byte, error)
}

// Encoder compresses a planar 4:2:0 frame.
type Encoder interface {
	Encode(frame []byte, width, height, quality int) ([]byte, error)
}

// EventPublisher receives pipeline events.
type EventPublisher interface {
	Publish(ev events.Event)
}
