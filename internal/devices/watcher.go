//go:build linux

package devices

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/spearcam/internal/events"
	"github.com/smazurov/spearcam/internal/logging"
	"github.com/smazurov/spearcam/pkg/linuxav/hotplug"
)

// Source produces kernel device events. *hotplug.Monitor implements it.
type Source interface {
	Run(ctx context.Context, out chan<- hotplug.Event) error
}

// Watcher follows video4linux hotplug events, keeps the set of known capture
// nodes current and publishes a DeviceEvent for every add and remove.
type Watcher struct {
	source   Source
	detector Detector
	bus      Publisher
	logger   *slog.Logger
	settle   time.Duration

	mu       sync.Mutex
	known    map[string]DeviceInfo
	onRemove func(devicePath string)
}

// NewWatcher returns a watcher reading from source. detector may be nil, in
// which case added nodes are published without a name.
func NewWatcher(source Source, detector Detector, bus Publisher) *Watcher {
	return &Watcher{
		source:   source,
		detector: detector,
		bus:      bus,
		logger:   logging.GetLogger("devices"),
		settle:   time.Second,
		known:    make(map[string]DeviceInfo),
	}
}

// OnRemove registers fn to run after a known capture node disappears.
func (w *Watcher) OnRemove(fn func(devicePath string)) {
	w.mu.Lock()
	w.onRemove = fn
	w.mu.Unlock()
}

// Devices returns the capture nodes currently known to the watcher.
func (w *Watcher) Devices() []DeviceInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]DeviceInfo, 0, len(w.known))
	for _, d := range w.known {
		out = append(out, d)
	}
	return out
}

// Run seeds the device set and then processes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.detector != nil {
		found, err := w.detector.FindDevices()
		if err != nil {
			w.logger.Warn("Failed to get initial device list", "error", err)
		}
		w.mu.Lock()
		for _, d := range found {
			w.known[d.DevicePath] = d
		}
		w.mu.Unlock()
		w.logger.Info("Initialized with V4L2 devices", "count", len(found))
	}

	ch := make(chan hotplug.Event, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.source.Run(ctx, ch)
	}()

	w.logger.Info("Hotplug monitoring started", "subsystem", hotplug.SubsystemVideo4Linux)
	for ev := range ch {
		w.handle(ctx, ev)
	}

	err := <-errCh
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		w.logger.Info("Hotplug monitor stopped")
		return nil
	}
	return err
}

func (w *Watcher) handle(ctx context.Context, ev hotplug.Event) {
	if ev.Subsystem != hotplug.SubsystemVideo4Linux {
		return
	}
	node := ev.DeviceNode()
	if node == "" {
		return
	}

	switch ev.Action {
	case hotplug.ActionAdd:
		info := w.describe(ctx, node)
		w.mu.Lock()
		w.known[node] = info
		w.mu.Unlock()
		w.logger.Info("Device added", "device", node, "name", info.DeviceName)
		w.publish(ev.Action, info)

	case hotplug.ActionRemove:
		w.mu.Lock()
		info, ok := w.known[node]
		delete(w.known, node)
		onRemove := w.onRemove
		w.mu.Unlock()
		if !ok {
			info = DeviceInfo{DevicePath: node}
		}
		w.logger.Info("Device removed", "device", node, "name", info.DeviceName)
		w.publish(ev.Action, info)
		if onRemove != nil {
			onRemove(node)
		}

	default:
		w.logger.Debug("Ignoring device event", "action", ev.Action, "device", node)
	}
}

// describe looks the new node up once the driver has had time to register it.
func (w *Watcher) describe(ctx context.Context, node string) DeviceInfo {
	info := DeviceInfo{DevicePath: node}
	if w.detector == nil {
		return info
	}
	if w.settle > 0 {
		select {
		case <-time.After(w.settle):
		case <-ctx.Done():
			return info
		}
	}
	found, err := w.detector.FindDevices()
	if err != nil {
		w.logger.Debug("Device lookup failed", "device", node, "error", err)
		return info
	}
	for _, d := range found {
		if d.DevicePath == node {
			return d
		}
	}
	return info
}

func (w *Watcher) publish(action string, info DeviceInfo) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.DeviceEvent{
		Action:     action,
		DevicePath: info.DevicePath,
		Name:       info.DeviceName,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}
