//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/unix"
	"testing"
)

// TestErrnoComparison verifies that errors.Is works with the errno values the
// enumeration and capture paths branch on.
func TestErrnoComparison(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "EAGAIN matches EAGAIN",
			err:      unix.EAGAIN,
			target:   unix.EAGAIN,
			expected: true,
		},
		{
			name:     "wrapped EAGAIN matches EAGAIN",
			err:      fmt.Errorf("VIDIOC_DQBUF: %w", unix.EAGAIN),
			target:   unix.EAGAIN,
			expected: true,
		},
		{
			name:     "ENOTTY matches ENOTTY",
			err:      unix.ENOTTY,
			target:   unix.ENOTTY,
			expected: true,
		},
		{
			name:     "EINTR does not match ENOTTY",
			err:      unix.EINTR,
			target:   unix.ENOTTY,
			expected: false,
		},
		{
			name:     "EINVAL matches EINVAL",
			err:      unix.EINVAL,
			target:   unix.EINVAL,
			expected: true,
		},
		{
			name:     "ENODEV matches ENODEV",
			err:      unix.ENODEV,
			target:   unix.ENODEV,
			expected: true,
		},
		{
			name:     "ENXIO matches ENXIO",
			err:      unix.ENXIO,
			target:   unix.ENXIO,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errors.Is(tt.err, tt.target)
			if result != tt.expected {
				t.Errorf("errors.Is(%v, %v) = %v, want %v",
					tt.err, tt.target, result, tt.expected)
			}
		})
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   PixFmtH264,
			expected: "H264",
		},
		{
			name:     "HEVC format",
			format:   PixFmtHEVC,
			expected: "HEVC",
		},
		{
			name:     "NV12 format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "all 0xFF bytes",
			format:   0xFFFFFFFF,
			expected: "\xFF\xFF\xFF\xFF",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{
			name:        "60 fps (1/60)",
			framerate:   Framerate{Numerator: 1, Denominator: 60},
			expectedFPS: 60.0,
		},
		{
			name:        "30 fps (1/30)",
			framerate:   Framerate{Numerator: 1, Denominator: 30},
			expectedFPS: 30.0,
		},
		{
			name:        "29.97 fps (1001/30000)",
			framerate:   Framerate{Numerator: 1001, Denominator: 30000},
			expectedFPS: 30000.0 / 1001.0, // ~29.97
		},
		{
			name:        "25 fps (1/25)",
			framerate:   Framerate{Numerator: 1, Denominator: 25},
			expectedFPS: 25.0,
		},
		{
			name:        "zero numerator returns 0",
			framerate:   Framerate{Numerator: 0, Denominator: 60},
			expectedFPS: 0.0,
		},
		{
			name:        "zero denominator with non-zero numerator",
			framerate:   Framerate{Numerator: 1, Denominator: 0},
			expectedFPS: 0.0, // Division by numerator=1 gives 0/1=0
		},
		{
			name:        "both zero",
			framerate:   Framerate{Numerator: 0, Denominator: 0},
			expectedFPS: 0.0,
		},
		{
			name:        "large values",
			framerate:   Framerate{Numerator: 1000000, Denominator: 60000000},
			expectedFPS: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			// Use approximate comparison for floating point
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestStepwiseResolutions(t *testing.T) {
	frmsize := v4l2Frmsizeenum{typ: frmsizeTypeStepwise}
	stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
	stepwise.minWidth = 320
	stepwise.maxWidth = 800
	stepwise.stepWidth = 8
	stepwise.minHeight = 240
	stepwise.maxHeight = 600
	stepwise.stepHeight = 8

	got := getStepwiseResolutions(&frmsize)
	want := []Resolution{{320, 240}, {640, 480}, {800, 600}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d resolutions, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

func TestCstr(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("uvcvideo\x00\x00\x00"), "uvcvideo"},
		{[]byte("no-terminator"), "no-terminator"},
		{[]byte{0, 'x'}, ""},
	}
	for _, tt := range tests {
		if got := cstr(tt.in); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestEffectiveCaps(t *testing.T) {
	c := v4l2Capability{capabilities: capVideoCapture | capStreaming}
	if got := c.effectiveCaps(); got != capVideoCapture|capStreaming {
		t.Errorf("Expected device-wide caps 0x%x, got 0x%x", capVideoCapture|capStreaming, got)
	}

	c = v4l2Capability{capabilities: capDeviceCaps | capVideoCapture | capStreaming, deviceCaps: capStreaming}
	if got := c.effectiveCaps(); got != capStreaming {
		t.Errorf("Expected node caps 0x%x, got 0x%x", capStreaming, got)
	}
}

func TestCaptureClosedOperations(t *testing.T) {
	c := NewCapture()
	if err := c.Init(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen from Init, got %v", err)
	}
	if _, err := c.GrabFrame(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen from GrabFrame, got %v", err)
	}
	if err := c.ReleaseFrame(); !errors.Is(err, ErrNoFrameHeld) {
		t.Errorf("Expected ErrNoFrameHeld, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected Close on unopened device to succeed, got %v", err)
	}
}

func TestCaptureOpenMissingNode(t *testing.T) {
	c := NewCapture()
	err := c.Open("/dev/does-not-exist-video99", 320, 240, PixFmtYUYV)
	if !errors.Is(err, unix.ENOENT) {
		t.Errorf("Expected ENOENT, got %v", err)
	}
	if c.Width() != 0 || c.Height() != 0 {
		t.Errorf("Expected no geometry after failed open, got %dx%d", c.Width(), c.Height())
	}
}
