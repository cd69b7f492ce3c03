// Package logger tees application logs into a rotating JSON file.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config level name to an slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New returns a logger writing to primary and to a file writer built from config.
// The returned writer must be closed on shutdown.
func New(primary slog.Handler, level slog.Level, config FileWriterConfig) (*slog.Logger, *FileWriter, error) {
	fw, err := NewFileWriter(config)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(NewTeeHandler(primary, fw, level)), fw, nil
}

// rotateIfNeeded checks if the log file exceeds maxSize and rotates it if needed
// Rotation strategy: app.log -> app.log.1 -> app.log.2 -> ... (keeps last maxBackups rotations)
func rotateIfNeeded(filePath string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if info.Size() < maxSize {
		return nil
	}

	if maxBackups <= 0 {
		maxBackups = 5
	}

	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", filePath, i)
		newPath := fmt.Sprintf("%s.%d", filePath, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath) // overwrites the oldest backup
		}
	}

	backupPath := fmt.Sprintf("%s.1", filePath)
	if err := os.Rename(filePath, backupPath); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	return nil
}
