// Package observability owns the process-wide loggers and telemetry system.
package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used for the HTTP server (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// NewCLILogger returns a console logger; verbose lowers the level to DEBUG.
func NewCLILogger(service string, verbose bool) (*logging.Logger, error) {
	logger, err := logging.NewCLI(service)
	if err != nil {
		return nil, fmt.Errorf("init CLI logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	return logger, nil
}

// InitCLILogger sets CLILogger.
func InitCLILogger(service string, verbose bool) error {
	logger, err := NewCLILogger(service, verbose)
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// NewServerLogger returns a JSON logger on stderr with request correlation.
func NewServerLogger(service, level string) (*logging.Logger, error) {
	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: ParseLevel(level),
		Service:      service,
		Environment:  "production",
		StaticFields: map[string]any{"component": "server"},
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	logger, err := logging.New(config)
	if err != nil {
		return nil, fmt.Errorf("init server logger: %w", err)
	}
	return logger, nil
}

// InitServerLogger sets ServerLogger.
func InitServerLogger(service, level string) error {
	logger, err := NewServerLogger(service, level)
	if err != nil {
		return err
	}
	ServerLogger = logger
	return nil
}

// ParseLevel maps config level names onto gofulmen severities. Unknown
// names fall back to INFO.
func ParseLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
