// Package devices discovers V4L2 capture nodes and follows hotplug events
// for them.
package devices

import (
	"errors"

	"github.com/smazurov/spearcam/internal/events"
)

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("device discovery is only supported on linux")

// DeviceInfo describes a capture node.
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node"`
	DeviceName string `json:"device_name" example:"SPEAr CAMIF" doc:"Driver-reported card name"`
	DeviceID   string `json:"device_id" doc:"Stable identifier from /dev/v4l/by-id or a synthetic one"`
	Caps       uint32 `json:"caps" doc:"V4L2 capability bits"`
}

// FormatInfo is a pixel format offered by a device.
type FormatInfo struct {
	PixelFormat uint32       `json:"pixel_format"`
	FourCC      string       `json:"fourcc" example:"YUYV"`
	FormatName  string       `json:"format_name"`
	Emulated    bool         `json:"emulated"`
	Resolutions []Resolution `json:"resolutions,omitempty"`
}

// Resolution is a frame size offered for a format.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Detector enumerates capture devices.
type Detector interface {
	FindDevices() ([]DeviceInfo, error)
	GetFormats(devicePath string) ([]FormatInfo, error)
	GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)
}

// Publisher receives device events.
type Publisher interface {
	Publish(ev events.Event)
}

// NewDetector returns the platform detector.
func NewDetector() Detector {
	return newDetector()
}

// Describe lists formats for devicePath with the resolutions of each.
func Describe(d Detector, devicePath string) ([]FormatInfo, error) {
	formats, err := d.GetFormats(devicePath)
	if err != nil {
		return nil, err
	}
	for i := range formats {
		res, err := d.GetResolutions(devicePath, formats[i].PixelFormat)
		if err != nil {
			continue
		}
		formats[i].Resolutions = res
	}
	return formats, nil
}
