package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel backs the default logger's level so it can be changed at runtime.
var logLevel = new(slog.LevelVar)

// ParseLevel maps "debug", "info", "warn"/"warning", "error" (case-insensitive)
// to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
// The level can later be changed with SetLogLevel without rebuilding the handler.
func SetupLogger(format, level string) {
	lvl := ParseLevel(level)
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: lvl == slog.LevelDebug, // include file:line only when starting in debug
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// SetLogLevel changes the level of the logger installed by SetupLogger.
// Returns true when the level actually changed.
func SetLogLevel(level string) bool {
	lvl := ParseLevel(level)
	if logLevel.Level() == lvl {
		return false
	}
	logLevel.Set(lvl)
	return true
}

// LogLevel returns the current level of the default logger.
func LogLevel() slog.Level {
	return logLevel.Level()
}
