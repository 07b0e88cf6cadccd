// Package logging provides structured logging with per-module log levels.
//
// Records are routed to stdout when it is connected, to the systemd journal
// when journald is reachable, and always to an in-memory ring buffer that
// backs /api/logs and the log SSE feed.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera":   "debug",
//			"memalloc": "warn",
//		},
//	})
//
// Then obtain a logger per module:
//
//	logger := logging.GetLogger("camera")
//	logger.Info("preview started", "width", 320, "height", 240)
//
// Journal entries carry SYSLOG_IDENTIFIER=spearcam and every attribute as an
// upper-case field:
//
//	journalctl -t spearcam MODULE=memalloc
//	journalctl -t spearcam -p warning
package logging
