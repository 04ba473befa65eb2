package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls file-based logging.
type Config struct {
	Level         string // minimum level: debug, info, warn, error
	FilePath      string // log file path; empty disables file logging
	MaxSizeMB     int    // live file size cap before rotation
	MaxFiles      int    // rotated files kept
	WriteToStderr bool   // mirror log lines to stderr
}

// DefaultConfig returns the standard file-logging setup under ~/.vab/logs.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	c := DefaultConfig()
	c.Level = "debug"
	return c
}

// Setup opens the rotating log file and builds a JSON slog logger on it.
// The returned cleanup flushes and closes the file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var sink io.Writer = w
	if cfg.WriteToStderr {
		sink = io.MultiWriter(w, os.Stderr)
	}
	opts := &slog.HandlerOptions{Level: LevelFromString(cfg.Level)}
	logger := slog.New(slog.NewJSONHandler(sink, opts))

	teardown := func() {
		_ = w.Sync()
		_ = w.Close()
	}
	return logger, teardown, nil
}

// SetupStderr installs a plain stderr text logger at the given level as
// the process default. Used when file logging is not requested.
func SetupStderr(level string) {
	opts := &slog.HandlerOptions{Level: LevelFromString(level)}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// LevelFromString parses a level name, defaulting to info.
func LevelFromString(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
