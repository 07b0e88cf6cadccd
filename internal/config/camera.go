package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/spearcam/internal/camera"
)

// LoadCameraParameters reads a camera parameters TOML file on top of
// camera.DefaultParameters. A missing file yields the defaults. The result is
// validated so a rejected file never reaches the camera.
func LoadCameraParameters(path string) (camera.Parameters, error) {
	params := camera.DefaultParameters()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return params, nil
		}
		return params, fmt.Errorf("failed to read camera parameters: %w", err)
	}

	if err := toml.Unmarshal(data, &params); err != nil {
		return camera.DefaultParameters(), fmt.Errorf("failed to parse camera parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return camera.DefaultParameters(), err
	}
	return params, nil
}

// SaveCameraParameters writes params to path, replacing it atomically.
func SaveCameraParameters(path string, params camera.Parameters) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal camera parameters: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".camera-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write camera parameters: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write camera parameters: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write camera parameters: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write camera parameters: %w", err)
	}
	return nil
}
