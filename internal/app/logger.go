package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
)

// NewLogger builds the process logger from LOG_BACKEND and LOG_LEVEL.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	switch strings.ToLower(cfg.Log.Backend) {
	case "zap":
		return logx.NewZap(cfg.Log.Level)
	case "", "slog":
		base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(cfg.Log.Level),
		}))
		return logx.NewSlogAdapter(base), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Log.Backend)
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
