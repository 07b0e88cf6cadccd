package devices

import (
	"fmt"
	"os"
	"strings"
)

// ResolveDevicePath converts a configured capture node to a usable path. Full
// /dev paths are returned as is; stable ids are looked up under
// /dev/v4l/by-id and /dev/v4l/by-path.
func ResolveDevicePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/dev/") {
		return deviceID, nil
	}

	for _, dir := range []string{"/dev/v4l/by-id/", "/dev/v4l/by-path/"} {
		devicePath := dir + deviceID
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}

// ResolveProbePaths resolves each entry of paths, keeping the entries that
// cannot be resolved so the camera reports them when probing.
func ResolveProbePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if resolved, err := ResolveDevicePath(p); err == nil {
			out = append(out, resolved)
			continue
		}
		out = append(out, p)
	}
	return out
}
