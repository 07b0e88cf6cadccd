//go:build linux

package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	DeviceID   string `json:"device_id"` // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32 `json:"caps"`
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32 `json:"pixel_format"`
	FormatName  string `json:"format_name"`
	Emulated    bool   `json:"emulated"`
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability flags.
const (
	capVideoCapture = 0x00000001
	capStreaming    = 0x04000000
	capDeviceCaps   = 0x80000000
)

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtHEVC  = 0x43564548 // 'HEVC'
	PixFmtNV12  = 0x3231564E // 'NV12'
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)

// Buffer and memory types.
const (
	bufTypeVideoCapture = 1
	memoryMmap          = 1
	fieldAny            = 0
)
