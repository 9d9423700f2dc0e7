// Package logging provides structured logging for the classroom controller.
//
// It wraps log/slog so every package logs the same way: JSON for
// deployment, text for development, with service and version fields on
// every entry.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("automation").Info("timer armed", "timer", "sleep")
//
// Domain packages accept any value with Debug/Info/Warn/Error methods, which
// *Logger satisfies through the embedded slog.Logger.
package logging
