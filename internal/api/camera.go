package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/spearcam/internal/api/models"
	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/devices"
	"github.com/smazurov/spearcam/internal/events"
)

const pictureTimeout = 10 * time.Second

type cameraAction struct {
	id      string
	path    string
	summary string
	run     func() error
}

func (s *Server) registerCameraRoutes() {
	s.registerDeviceRoutes()

	cam := s.options.Camera
	if cam == nil {
		s.logger.Debug("Camera not configured, skipping camera routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera status",
		Description: "Get the preview pipeline state, enabled messages and frame counters",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CameraStatusResponse, error) {
		return &models.CameraStatusResponse{Body: cam.Status()}, nil
	})

	actions := []cameraAction{
		{"start-preview", "/api/camera/preview/start", "Start preview", cam.StartPreview},
		{"stop-preview", "/api/camera/preview/stop", "Stop preview", func() error { cam.StopPreview(); return nil }},
		{"start-recording", "/api/camera/recording/start", "Start recording", cam.StartRecording},
		{"stop-recording", "/api/camera/recording/stop", "Stop recording", cam.StopRecording},
		{"autofocus", "/api/camera/autofocus", "Autofocus", cam.AutoFocus},
	}
	for _, a := range actions {
		huma.Register(s.api, huma.Operation{
			OperationID: a.id,
			Method:      http.MethodPost,
			Path:        a.path,
			Summary:     a.summary,
			Tags:        []string{"camera"},
			Errors:      []int{401, 409, 503},
			Security:    withAuth(),
		}, func(ctx context.Context, input *struct{}) (*models.CameraStatusResponse, error) {
			if err := a.run(); err != nil {
				return nil, toHumaError(a.summary+" failed", err)
			}
			return &models.CameraStatusResponse{Body: cam.Status()}, nil
		})
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "take-picture",
		Method:      http.MethodPost,
		Path:        "/api/camera/picture",
		Summary:     "Take picture",
		Description: "Stop the preview and capture one JPEG at the configured picture size. The preview stays stopped.",
		Tags:        []string{"camera"},
		Errors:      []int{401, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.PictureResponse, error) {
		ctx, cancel := context.WithTimeout(ctx, pictureTimeout)
		defer cancel()

		if err := cam.TakePicture(ctx); err != nil {
			return nil, toHumaError("Failed to take picture", err)
		}
		var picture []byte
		if s.options.Pictures != nil {
			picture = s.options.Pictures.LastPicture()
		}
		if len(picture) == 0 {
			return nil, huma.Error409Conflict("No compressed image was delivered")
		}
		// The driver may have adjusted the requested size.
		size := cam.GetParameters().Picture.Size
		if cfg, err := jpeg.DecodeConfig(bytes.NewReader(picture)); err == nil {
			size = camera.Size{Width: cfg.Width, Height: cfg.Height}
		}
		return &models.PictureResponse{
			Body: models.PictureData{
				Width:     size.Width,
				Height:    size.Height,
				Bytes:     len(picture),
				ImageData: base64.StdEncoding.EncodeToString(picture),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-parameters",
		Method:      http.MethodGet,
		Path:        "/api/camera/parameters",
		Summary:     "Get parameters",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ParametersResponse, error) {
		p := cam.GetParameters()
		return &models.ParametersResponse{
			Body: models.ParametersData{Parameters: p, Flattened: p.Flatten()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-camera-parameters",
		Method:      http.MethodPut,
		Path:        "/api/camera/parameters",
		Summary:     "Set parameters",
		Description: "Replace the camera parameters. While the preview runs its size stays at the active capture size.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ParametersRequest) (*models.ParametersResponse, error) {
		return s.applyParameters(input.Body, input.Persist)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-camera-parameters",
		Method:      http.MethodPatch,
		Path:        "/api/camera/parameters",
		Summary:     "Update parameters",
		Description: "Apply flattened key=value;key=value text on top of the current parameters. Unknown keys are ignored.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.FlattenedParametersRequest) (*models.ParametersResponse, error) {
		p := cam.GetParameters()
		if err := p.Unflatten(input.Body.Flattened); err != nil {
			return nil, toHumaError("Parameters rejected", err)
		}
		return s.applyParameters(p, input.Persist)
	})

	if s.options.Preview != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "get-preview-snapshot",
			Method:      http.MethodGet,
			Path:        "/api/camera/preview.jpg",
			Summary:     "Preview snapshot",
			Description: "Get the frame currently on the preview surface as a base64 JPEG",
			Tags:        []string{"camera"},
			Errors:      []int{401, 404},
			Security:    withAuth(),
		}, func(ctx context.Context, input *models.SnapshotRequest) (*models.SnapshotResponse, error) {
			frame, err := s.options.Preview.SnapshotJPEG(input.Quality)
			if err != nil {
				return nil, toHumaError("No preview frame", err)
			}
			st := cam.Status()
			resp := &models.SnapshotResponse{}
			resp.Body.Width = st.Width
			resp.Body.Height = st.Height
			resp.Body.Frames = st.FramesDelivered
			resp.Body.ImageData = base64.StdEncoding.EncodeToString(frame)
			return resp, nil
		})
	}
}

func (s *Server) registerDeviceRoutes() {
	det := s.options.Detector
	if det == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-camera-devices",
		Method:      http.MethodGet,
		Path:        "/api/camera/devices",
		Summary:     "List devices",
		Description: "List V4L2 capture devices with their formats and frame sizes",
		Tags:        []string{"camera"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DevicesResponse, error) {
		found, err := det.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}
		resp := &models.DevicesResponse{}
		resp.Body.Devices = make([]models.CameraDevice, 0, len(found))
		for _, d := range found {
			formats, err := devices.Describe(det, d.DevicePath)
			if err != nil {
				s.logger.Debug("Failed to describe device", "device", d.DevicePath, "error", err)
			}
			resp.Body.Devices = append(resp.Body.Devices, models.CameraDevice{DeviceInfo: d, Formats: formats})
		}
		return resp, nil
	})
}

// applyParameters hands p to the camera and, when asked, writes it to the
// parameters file. The file watcher then reloads the same values.
func (s *Server) applyParameters(p camera.Parameters, persist bool) (*models.ParametersResponse, error) {
	cam := s.options.Camera
	if persist && s.options.ParametersFile == "" {
		return nil, huma.Error409Conflict("No parameters file configured")
	}
	if err := cam.SetParameters(p); err != nil {
		return nil, toHumaError("Parameters rejected", err)
	}
	current := cam.GetParameters()
	if persist {
		if err := config.SaveCameraParameters(s.options.ParametersFile, current); err != nil {
			return nil, huma.Error500InternalServerError("Failed to save parameters", err)
		}
		s.logger.Info("Camera parameters saved", "path", s.options.ParametersFile)
	}
	s.eventBus.Publish(events.ParametersChangedEvent{
		Source:    "api",
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return &models.ParametersResponse{
		Body: models.ParametersData{Parameters: current, Flattened: current.Flatten()},
	}, nil
}
