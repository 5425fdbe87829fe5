// Package logging provides structured logging for the rover daemon and tools.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the connectivity daemon: mode transitions,
// event-signal changes, HTTP requests and WebSocket control frames.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: event bits, control frames, hex dumps
//   - Info: transitions, server start/stop, provisioning updates
//   - Warn: recoverable failures (store I/O, reconnect timeouts)
//   - Error: fatal bring-up failures before a restart
//
// # Structured Logging
//
// All log functions take zap fields:
//
//	logging.Info("Station connected",
//	    zap.String("ssid", cfg.SSID),
//	    zap.Stringer("ip", ip),
//	)
//
// # Specialized Logging
//
//	logging.LogTransition("captive_ap", "station", "provisioned")
//	logging.LogEventBits("set", events.Reconnect)
//	logging.LogWebSocketMessage(remoteAddr, "received", msgType, payload)
//
// # Configuration
//
// The level comes from the --log-level flag or ROVER_LOG_LEVEL. An empty level
// yields a no-op logger so CLI commands stay quiet by default. The daemon may
// additionally mirror logs to a rotating file:
//
//	err := logging.InitializeWithOptions("info", logging.Options{File: "/var/log/rover/netd.log"})
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialized.
package logging
