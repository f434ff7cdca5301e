package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

func Init(env string) {
	InitWithLevel(env, "")
}

// InitWithLevel configures the process logger; an empty level keeps the
// environment default (info in production, debug elsewhere).
func InitWithLevel(env, level string) {
	if env == "production" {
		Configure("json", parseLevel(level, slog.LevelInfo))
		return
	}
	Configure("text", parseLevel(level, slog.LevelDebug))
}

// Configure installs a handler of the given format ("json" or "text").
func Configure(format string, level slog.Level) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// ParseLevel maps a configured level name, falling back to info.
func ParseLevel(level string) slog.Level {
	return parseLevel(level, slog.LevelInfo)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// MaskEmail keeps the last characters of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	if len(local) > 3 {
		local = local[len(local)-3:]
	}
	return "***" + local + email[at:]
}
