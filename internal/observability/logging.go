package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevelEnv selects the log level: debug, info, warn or error.
const LogLevelEnv = "FLIGHTSURETY_LOG_LEVEL"

// NewLogger creates a structured JSON logger on stdout.
// Production default: info.
func NewLogger(component string) zerolog.Logger {
	level := ParseLogLevel(os.Getenv(LogLevelEnv))

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewLoggerWithLevel creates a logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLogLevel maps a level name to zerolog, defaulting to info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewNopLogger discards everything; used where no logger is wired.
func NewNopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
