package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/spearcam/internal/camera"
)

func TestLoadCameraParametersMissingFile(t *testing.T) {
	params, err := LoadCameraParameters(filepath.Join(t.TempDir(), "camera.toml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got %v", err)
	}
	if params.Flatten() != camera.DefaultParameters().Flatten() {
		t.Error("Expected default parameters")
	}
}

func TestLoadCameraParametersOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.toml")
	content := `
rotation = 90

[preview]
size = "640x480"
format = "yuv420p"

[picture]
jpeg_quality = 75

[gps]
latitude = 48.8583
longitude = 2.2945
altitude = 35.0
timestamp = 1199149323
processing_method = "GPS"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	params, err := LoadCameraParameters(path)
	if err != nil {
		t.Fatalf("LoadCameraParameters failed: %v", err)
	}
	if params.Preview.Size != (camera.Size{Width: 640, Height: 480}) {
		t.Errorf("Expected preview 640x480, got %s", params.Preview.Size)
	}
	if params.Preview.Format != camera.FormatYUV420P {
		t.Errorf("Expected yuv420p, got %q", params.Preview.Format)
	}
	if params.Picture.JPEGQuality != 75 {
		t.Errorf("Expected quality 75, got %d", params.Picture.JPEGQuality)
	}
	if params.Rotation != 90 {
		t.Errorf("Expected rotation 90, got %d", params.Rotation)
	}
	if params.GPS == nil || params.GPS.Timestamp != 1199149323 {
		t.Errorf("Expected GPS timestamp 1199149323, got %+v", params.GPS)
	}
	if params.Picture.Size != camera.DefaultParameters().Picture.Size {
		t.Errorf("Expected untouched picture size, got %s", params.Picture.Size)
	}
}

func TestLoadCameraParametersRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.toml")
	if err := os.WriteFile(path, []byte("[focus]\nmode = \"auto\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCameraParameters(path); !errors.Is(err, camera.ErrBadValue) {
		t.Errorf("Expected ErrBadValue, got %v", err)
	}

	if err := os.WriteFile(path, []byte("[preview\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCameraParameters(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestSaveCameraParametersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "camera.toml")
	params := camera.DefaultParameters()
	params.Preview.Size = camera.Size{Width: 176, Height: 144}
	params.Thumbnail.Size = camera.Size{}

	if err := SaveCameraParameters(path, params); err != nil {
		t.Fatalf("SaveCameraParameters failed: %v", err)
	}
	loaded, err := LoadCameraParameters(path)
	if err != nil {
		t.Fatalf("LoadCameraParameters failed: %v", err)
	}
	if loaded.Flatten() != params.Flatten() {
		t.Errorf("Expected %s, got %s", params.Flatten(), loaded.Flatten())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only camera.toml left behind, got %d entries", len(entries))
	}
}
