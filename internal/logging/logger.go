package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	defaultBufferSize = 1000
	syslogIdentifier  = "spearcam"
)

// Logger is satisfied by *slog.Logger. Components accept it so tests can
// substitute a recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	initialized bool
	current     Config
	rootLevel   = &slog.LevelVar{}
	loggers     = make(map[string]*slog.Logger)
	levels      = make(map[string]*slog.LevelVar)
	ring        *RingBuffer
	onEntry     LogCallback
)

// Initialize configures the global handler chain. Loggers handed out before
// Initialize are rebuilt so they pick up the journal and ring buffer outputs.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	initialized = true
	ring = NewRingBuffer(defaultBufferSize)

	base, ok := parseLevel(cfg.Level)
	if !ok {
		base = slog.LevelInfo
	}
	rootLevel.Set(base)

	for module, lv := range levels {
		lv.Set(moduleLevel(module, base))
		loggers[module] = slog.New(createHandler(cfg.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(cfg.Format, rootLevel)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	logger, ok := loggers[module]
	mu.RUnlock()
	if ok {
		return logger
	}

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	if initialized {
		base, ok := parseLevel(current.Level)
		if !ok {
			base = slog.LevelInfo
		}
		lv.Set(moduleLevel(module, base))
		format = current.Format
	} else {
		lv.Set(slog.LevelInfo)
	}

	logger = slog.New(createHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv
	return logger
}

// SetModuleLevel changes a module's level at runtime. It reports false when
// the level string is not recognised.
func SetModuleLevel(module, level string) bool {
	parsed, ok := parseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	mu.Lock()
	defer mu.Unlock()
	levels[module].Set(parsed)
	return true
}

// GetBuffer returns the ring buffer holding recent log entries, or nil
// before Initialize.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return ring
}

// SetLogCallback registers a function invoked for every buffered entry.
func SetLogCallback(cb LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	onEntry = cb
}

// moduleLevel must be called with mu held.
func moduleLevel(module string, fallback slog.Level) slog.Level {
	if s, ok := current.Modules[module]; ok {
		if lvl, ok := parseLevel(s); ok {
			return lvl
		}
	}
	return fallback
}

// createHandler fans out to stdout, the journal when present, and the ring
// buffer.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable is false when stdout is /dev/null, as under systemd
// with StandardOutput=null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
