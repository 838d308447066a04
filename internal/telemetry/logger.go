package telemetry

import (
	"fmt"
	"github.com/iamvkosarev/vedai/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// InitLogger installs the default slog logger. With a log file configured,
// records go to a rotated JSON file; otherwise they go to stderr as text.
// The returned closer releases the file.
func InitLogger(cfg config.Log) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	if cfg.File == "" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
		return logger, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	logger := slog.New(slog.NewJSONHandler(file, opts))
	slog.SetDefault(logger)
	return logger, file, nil
}

func parseLevel(level string) slog.Level {
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
