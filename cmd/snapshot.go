package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/devices"
	"github.com/smazurov/spearcam/internal/exif"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// NewCaptureDevice returns an unopened V4L2 capture device.
func NewCaptureDevice() camera.CaptureDevice {
	return v4l2.NewCapture()
}

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var output string
	var device string
	var paramsFile string
	var width, height, quality int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture one JPEG from the camera",
		Long: `Opens the first capture node that accepts the picture size, takes one still picture ` +
			`with EXIF metadata and writes it to a file. Do not run this while the daemon holds the camera.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("camera")

			params := camera.DefaultParameters()
			if paramsFile != "" {
				loaded, err := config.LoadCameraParameters(paramsFile)
				if err != nil {
					return err
				}
				params = loaded
			}
			if width > 0 && height > 0 {
				params.Picture.Size = camera.Size{Width: width, Height: height}
			}
			if quality > 0 {
				params.Picture.JPEGQuality = quality
			}

			probe := camera.DefaultProbePaths()
			if device != "" {
				probe = devices.ResolveProbePaths([]string{device})
			}

			host := camera.NewHost(logger)
			cam := camera.New(camera.Options{
				DeviceFactory: NewCaptureDevice,
				Metadata:      exif.NewBuilder(0),
				Logger:        logger,
				ProbePaths:    probe,
			})
			cam.SetCallbacks(host)
			cam.EnableMsgType(camera.MsgCompressedImage)
			if err := cam.SetParameters(params); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := cam.TakePicture(ctx); err != nil {
				return fmt.Errorf("take picture: %w", err)
			}

			jpeg := host.LastPicture()
			if len(jpeg) == 0 {
				return errors.New("camera delivered no compressed image")
			}
			if err := os.WriteFile(output, jpeg, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes (%s) to %s\n", len(jpeg), params.Picture.Size, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.jpg", "Output JPEG file")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Capture node or /dev/v4l id, default probes /dev/video0-9")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Camera parameters TOML file")
	cmd.Flags().IntVar(&width, "width", 0, "Picture width, default from parameters")
	cmd.Flags().IntVar(&height, "height", 0, "Picture height, default from parameters")
	cmd.Flags().IntVarP(&quality, "quality", "q", 0, "JPEG quality 1-100, default from parameters")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")
	return cmd
}
