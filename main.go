package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/spearcam/cmd"
	"github.com/smazurov/spearcam/internal/api"
	"github.com/smazurov/spearcam/internal/camera"
	"github.com/smazurov/spearcam/internal/config"
	"github.com/smazurov/spearcam/internal/devices"
	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/exif"
	"github.com/smazurov/spearcam/internal/led"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/internal/memalloc"
	"github.com/smazurov/spearcam/internal/metrics/collectors"
	"github.com/smazurov/spearcam/internal/metrics/exporters"
	"github.com/smazurov/spearcam/internal/surface"
	"github.com/smazurov/spearcam/internal/version"
	"github.com/smazurov/spearcam/pkg/linuxav/hotplug"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Allocator settings
	MemallocProfile    string `help:"Allocation profile" default:"android" toml:"memalloc.profile" env:"MEMALLOC_PROFILE"`
	MemallocBase       string `help:"Region base bus address" default:"0x36600000" toml:"memalloc.base" env:"MEMALLOC_BASE"`
	MemallocWindow     int    `help:"Memory window in MiB" default:"96" toml:"memalloc.window_mb" env:"MEMALLOC_WINDOW_MB"`
	MemallocStrictFree bool   `help:"Only let sessions free chunks they own" default:"false" toml:"memalloc.strict_free" env:"MEMALLOC_STRICT_FREE"`

	// Camera settings
	CameraParametersFile string `help:"Camera parameters file, hot reloaded" default:"camera.toml" toml:"camera.parameters_file" env:"CAMERA_PARAMETERS_FILE"`
	CameraDevices        string `help:"Comma separated capture nodes or /dev/v4l ids to probe, empty probes /dev/video0-9" default:"" toml:"camera.devices" env:"CAMERA_DEVICES"`
	CameraBufferCount    int    `help:"Preview surface buffers" default:"2" toml:"camera.buffer_count" env:"CAMERA_BUFFER_COUNT"`
	CameraAutoStart      bool   `help:"Start the preview on boot" default:"false" toml:"camera.autostart" env:"CAMERA_AUTOSTART"`

	// Features settings
	FeaturesLEDControl bool `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesHotplug    bool `help:"Follow V4L2 hotplug events" default:"true" toml:"features.hotplug_enabled" env:"FEATURES_HOTPLUG"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingMemalloc string `help:"Allocator logging level" default:"info" toml:"logging.memalloc" env:"LOGGING_MEMALLOC"`
	LoggingCamera   string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingSurface  string `help:"Surface logging level" default:"info" toml:"logging.surface" env:"LOGGING_SURFACE"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingDevices  string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingLED      string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingConfig   string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func main() {
	var root *cobra.Command

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"memalloc": opts.LoggingMemalloc,
				"camera":   opts.LoggingCamera,
				"surface":  opts.LoggingSurface,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingHTTP,
				"devices":  opts.LoggingDevices,
				"led":      opts.LoggingLED,
				"config":   opts.LoggingConfig,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Allocator
		profile, err := memalloc.ProfileByName(opts.MemallocProfile)
		if err != nil {
			logger.Error("Invalid allocator profile", "error", err)
			os.Exit(1)
		}
		base, err := config.ParseAddress(opts.MemallocBase)
		if err != nil {
			logger.Error("Invalid allocator base", "error", err)
			os.Exit(1)
		}
		alloc, err := memalloc.New(memalloc.Config{
			Profile: profile,
			Base:    base,
			Window:  uint64(opts.MemallocWindow) << 20,
		},
			memalloc.WithLogger(logging.GetLogger("memalloc")),
			memalloc.WithEventBus(eventBus),
			memalloc.WithStrictFree(opts.MemallocStrictFree),
		)
		if err != nil {
			logger.Error("Failed to create allocator", "error", err)
			os.Exit(1)
		}
		memDevice := memalloc.NewDevice(alloc)

		// Camera pipeline
		var probePaths []string
		if opts.CameraDevices != "" {
			probePaths = devices.ResolveProbePaths(strings.Split(opts.CameraDevices, ","))
		}
		cameraLogger := logging.GetLogger("camera")
		host := camera.NewHost(cameraLogger)
		previewSurface := surface.NewMemory()
		cam := camera.New(camera.Options{
			DeviceFactory: cmd.NewCaptureDevice,
			Metadata:      exif.NewBuilder(0),
			EventBus:      eventBus,
			Logger:        cameraLogger,
			ProbePaths:    probePaths,
			BufferCount:   opts.CameraBufferCount,
		})
		cam.SetCallbacks(host)
		cam.EnableMsgType(camera.MsgError | camera.MsgShutter | camera.MsgPreviewFrame | camera.MsgCompressedImage)
		if setErr := cam.SetPreviewWindow(previewSurface); setErr != nil {
			logger.Error("Failed to attach preview surface", "error", setErr)
		}

		params, err := config.LoadCameraParameters(opts.CameraParametersFile)
		if err != nil {
			logger.Warn("Using default camera parameters", "path", opts.CameraParametersFile, "error", err)
		}
		if setErr := cam.SetParameters(params); setErr != nil {
			logger.Warn("Camera parameters rejected", "error", setErr)
		}

		paramsWatcher := config.NewConfigWatcher(
			opts.CameraParametersFile,
			config.LoadCameraParameters,
			logging.GetLogger("config"),
		)
		paramsWatcher.OnReload(func(p camera.Parameters) {
			if setErr := cam.SetParameters(p); setErr != nil {
				logger.Warn("Reloaded camera parameters rejected, keeping previous", "error", setErr)
				return
			}
			logger.Info("Camera parameters reloaded", "path", opts.CameraParametersFile)
			eventBus.Publish(events.ParametersChangedEvent{
				Source:    "file",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})

		// LEDs
		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLEDControl {
			ledLogger := logging.GetLogger("led")
			ledLogger.Info("LED control enabled, initializing")
			ledController = led.New(ledLogger)
			ledManager = led.NewManager(ledController, eventBus, ledLogger)
		}

		// Device discovery
		detector := devices.NewDetector()
		var monitor *hotplug.Monitor
		var deviceWatcher *devices.Watcher
		if opts.FeaturesHotplug {
			monitor, err = hotplug.NewMonitor()
			if err != nil {
				logger.Warn("Hotplug monitoring unavailable", "error", err)
			} else {
				deviceWatcher = devices.NewWatcher(monitor, detector, eventBus)
				deviceWatcher.OnRemove(func(devicePath string) {
					st := cam.Status()
					if st.State == camera.StateRunning && st.Device == devicePath {
						logger.Warn("Active capture device removed, stopping preview", "device", devicePath)
						cam.StopPreview()
					}
				})
			}
		}

		// Metrics
		sseExporter := exporters.NewSSEExporter(eventBus)
		cmaCollector := collectors.NewCMACollector()

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			EventBus:          eventBus,
			Memalloc:          memDevice,
			Camera:            cam,
			Pictures:          host,
			Preview:           previewSurface,
			ParametersFile:    opts.CameraParametersFile,
			Detector:          detector,
			LEDController:     ledController,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			sseExporter.Start(ctx)
			if startErr := cmaCollector.Start(ctx); startErr != nil {
				logger.Warn("Failed to start CMA collector", "error", startErr)
			}
			if startErr := paramsWatcher.Start(); startErr != nil {
				logger.Warn("Failed to watch camera parameters", "path", opts.CameraParametersFile, "error", startErr)
			}
			if ledManager != nil {
				ledManager.Start()
			}
			if deviceWatcher != nil {
				go func() {
					if runErr := deviceWatcher.Run(ctx); runErr != nil {
						logger.Error("Device watcher stopped", "error", runErr)
					}
				}()
			}
			if opts.CameraAutoStart {
				if startErr := cam.StartPreview(); startErr != nil {
					logger.Warn("Preview autostart failed", "error", startErr)
				}
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			cam.Release()
			previewSurface.Abandon()

			if stopErr := paramsWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if ledManager != nil {
				ledManager.Stop()
			}

			cancel()
			if monitor != nil {
				_ = monitor.Close()
			}
			sseExporter.Stop()
			_ = cmaCollector.Stop()

			for _, id := range memDevice.Sessions() {
				if sess, ok := memDevice.Lookup(id); ok {
					sess.Close()
				}
			}
		})
	})

	root = cli.Root()
	root.Use = "spearcam"
	root.Short = "Camera preview pipeline and contiguous memory allocator daemon"
	root.Version = version.Full()

	root.AddCommand(cmd.CreateMemallocCmd())
	root.AddCommand(cmd.CreateSnapshotCmd())
	root.AddCommand(cmd.CreateDevicesCmd())

	cli.Run()
}
