//go:build !linux

package devices

type otherDetector struct{}

func newDetector() Detector {
	return otherDetector{}
}

func (otherDetector) FindDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}

func (otherDetector) GetFormats(string) ([]FormatInfo, error) {
	return nil, ErrUnsupported
}

func (otherDetector) GetResolutions(string, uint32) ([]Resolution, error) {
	return nil, ErrUnsupported
}
