// Package logging provides structured logging for the luke dashboard.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same default fields (service, version) and the same level filter.
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
//	logger.Info("starting service", "port", 8080)
//
//	gw := logger.Component("gateway")
//	gw.Warn("observation closed", "url", u)
//
// Never log secrets, tokens or passwords.
package logging
