package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device-tree model substring to its sysfs LED names.
type board struct {
	match string
	leds  map[string]string
}

var boards = []board{
	{"SPEAr1340", map[string]string{LEDSystem: "spear::status"}},
	{"SPEAr1310", map[string]string{LEDSystem: "spear::status"}},
	{"Raspberry Pi", map[string]string{LEDSystem: "ACT"}},
}

// New returns a controller for the running board, or a no-op controller
// when the board is unknown.
func New(logger *slog.Logger) Controller {
	return forModel(detectBoard(), logger)
}

func forModel(model string, logger *slog.Logger) Controller {
	logger.Info("Detecting board for LED control", "board_model", model)
	for _, b := range boards {
		if strings.Contains(model, b.match) {
			logger.Info("Using sysfs LED controller", "board", b.match)
			return newSysfs(b.leds)
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
