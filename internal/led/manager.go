package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/spearcam/internal/events"
)

// Subscriber is the part of the event bus the manager needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Manager mirrors the preview pipeline state on the system LED.
type Manager struct {
	controller  Controller
	bus         Subscriber
	unsubscribe func()
	logger      *slog.Logger

	mu        sync.Mutex
	running   bool
	recording bool
}

// NewManager returns a manager that drives controller from bus events.
func NewManager(controller Controller, bus Subscriber, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		bus:        bus,
		logger:     logger,
	}
}

// Start subscribes to preview state changes and turns the LED off until the
// first one arrives.
func (m *Manager) Start() {
	m.apply(false, false)
	m.unsubscribe = m.bus.Subscribe(func(e events.PreviewStateChangedEvent) {
		m.handleEvent(e)
	})
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if err := m.controller.Set(LEDSystem, false, ""); err != nil {
		m.logger.Debug("Failed to switch system LED off", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(e events.PreviewStateChangedEvent) {
	running := e.State == "running"
	m.logger.Debug("Preview state changed", "state", e.State, "recording", e.Recording)
	m.apply(running, running && e.Recording)
}

func (m *Manager) apply(running, recording bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = running
	m.recording = recording

	var err error
	switch {
	case recording:
		err = m.controller.Set(LEDSystem, true, PatternBlink)
	case running:
		err = m.controller.Set(LEDSystem, true, PatternSolid)
	default:
		err = m.controller.Set(LEDSystem, false, "")
	}
	if err != nil {
		m.logger.Warn("Failed to update system LED", "running", running, "recording", recording, "error", err)
	}
}

// State reports what the LED currently shows.
func (m *Manager) State() (running, recording bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running, m.recording
}

// GetController returns the underlying LED controller for direct API access.
func (m *Manager) GetController() Controller {
	return m.controller
}
