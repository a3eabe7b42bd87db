// Package logger provides logging initialization for the loan service.
// It configures Go's built-in log/slog package based on the service's LoggingConfig.
// The default "line" format appends `[timestamp] [LEVEL] message` lines to a log file
// and mirrors them to the console; "json" and "text" use slog's own handlers.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"loanapi/internal/models"
	"loanapi/internal/version"
)

// Setup creates and configures a logger based on the provided LoggingConfig.
// In production, debug records are dropped regardless of the configured level.
// It returns the configured logger, an io.Closer for a held file handle (nil when
// nothing is held open), and any error encountered during setup.
//
// The caller is responsible for closing the returned Closer when done (if non-nil).
func Setup(cfg models.LoggingConfig, production bool, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	if production && level < slog.LevelInfo {
		level = slog.LevelInfo
	}

	if cfg.Format == "" || cfg.Format == "line" {
		handler, err := newLineHandlerForOutput(cfg.Output, cfg.FilePath, level)
		if err != nil {
			return nil, nil, err
		}
		return slog.New(handler), nil, nil
	}

	writer, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	// Add global version fields to all log messages
	logger := slog.New(handler).With(ver.LogAttrs()...)

	return logger, closer, nil
}

// parseLevel converts a level string to an slog.Level.
// Supported values: debug, info, warn, error (case-insensitive).
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

func newLineHandlerForOutput(output, filePath string, level slog.Leveler) (*LineHandler, error) {
	switch strings.ToLower(output) {
	case "", "both":
		if filePath == "" {
			return nil, fmt.Errorf("file path is required when output is %q", output)
		}
		return NewLineHandler(LineOptions{Level: level, FilePath: filePath, Stdout: os.Stdout, Stderr: os.Stderr}), nil
	case "file":
		if filePath == "" {
			return nil, fmt.Errorf("file path is required when output is file")
		}
		return NewLineHandler(LineOptions{Level: level, FilePath: filePath}), nil
	case "stderr":
		return NewLineHandler(LineOptions{Level: level, Stdout: os.Stderr, Stderr: os.Stderr}), nil
	default:
		return NewLineHandler(LineOptions{Level: level, Stdout: os.Stdout, Stderr: os.Stdout}), nil
	}
}

// openWriter returns the io.Writer for the json and text formats. For outputs that
// include a file, the file is returned as the closer. For stdout/stderr, closer is nil.
func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	output = strings.ToLower(output)
	switch output {
	case "stderr":
		return os.Stderr, nil, nil
	case "file", "both":
		if filePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is %s", output)
		}
		if err := ensureDir(filePath); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		if output == "both" {
			return io.MultiWriter(os.Stdout, f), f, nil
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}
