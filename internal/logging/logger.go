package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// maxLogSize is the size at which the log file is rotated aside.
const maxLogSize = 10 * 1024 * 1024 // 10MB

// Config holds logger configuration
type Config struct {
	Debug      bool
	OutputFile string // Path to log file (empty = stderr only)
	JSONFormat bool
}

// Logger wraps slog.Logger with file output handling
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a logger writing to stderr and, when configured, a log
// file rotated once it exceeds maxLogSize.
func New(config Config) (*Logger, error) {
	logger := &Logger{}

	writers := []io.Writer{os.Stderr}
	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
		if err := rotateIfNeeded(config.OutputFile); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
		}
		logger.file = file
		writers = append(writers, file)
	}

	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	out := io.MultiWriter(writers...)
	var handler slog.Handler
	if config.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger.Logger = slog.New(handler)
	return logger, nil
}

// rotateIfNeeded moves an oversized log file aside to <name>.1
func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.Size() < maxLogSize {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

// Close closes the log file if one is open
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
