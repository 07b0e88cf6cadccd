//go:build linux

package devices

import (
	"github.com/smazurov/spearcam/pkg/linuxav/v4l2"
)

type linuxDetector struct{}

func newDetector() Detector {
	return linuxDetector{}
}

func (linuxDetector) FindDevices() ([]DeviceInfo, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}
	devices := make([]DeviceInfo, len(found))
	for i, d := range found {
		devices[i] = DeviceInfo{
			DevicePath: d.DevicePath,
			DeviceName: d.DeviceName,
			DeviceID:   d.DeviceID,
			Caps:       d.Caps,
		}
	}
	return devices, nil
}

func (linuxDetector) GetFormats(devicePath string) ([]FormatInfo, error) {
	found, err := v4l2.GetFormats(devicePath)
	if err != nil {
		return nil, err
	}
	formats := make([]FormatInfo, len(found))
	for i, f := range found {
		formats[i] = FormatInfo{
			PixelFormat: f.PixelFormat,
			FourCC:      v4l2.FormatFourCC(f.PixelFormat),
			FormatName:  f.FormatName,
			Emulated:    f.Emulated,
		}
	}
	return formats, nil
}

func (linuxDetector) GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	found, err := v4l2.GetResolutions(devicePath, pixelFormat)
	if err != nil {
		return nil, err
	}
	res := make([]Resolution, len(found))
	for i, r := range found {
		res[i] = Resolution{Width: r.Width, Height: r.Height}
	}
	return res, nil
}
