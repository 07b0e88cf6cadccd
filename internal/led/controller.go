// Package led drives board status LEDs from camera pipeline state.
package led

// Patterns understood by every controller.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)

// LEDSystem is the board-independent name of the status LED.
const LEDSystem = "system"

// Controller abstracts LED hardware control across boards.
type Controller interface {
	// Set switches ledType on or off. pattern is one of the Pattern
	// constants, a raw trigger name, or empty to leave the trigger alone.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []string
}
