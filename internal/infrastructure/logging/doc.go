// Package logging provides structured logging for Climate Core.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 5000)
//	logger.Error("sensor read failed", "unit_id", id, "error", err)
//
// Never log SMTP passwords, webhook tokens or JWT secrets.
package logging
