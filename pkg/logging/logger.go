// Package logging provides structured logging shared by cmd/simcore and
// cmd/simworker. It wraps log/slog with an optional file destination
// alongside stderr, so cmd/simcore can log to <log-dir>/_control.log while
// still surfacing to stderr for an interactive operator.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Debug+ to stderr as text.
type Config struct {
	Level Level
	// LogFile, if set, is opened/created/appended and written to in
	// addition to stderr, always in JSON (machine-parseable logs are the
	// point of a file destination).
	LogFile string
	Service string
	JSON    bool
}

// Logger wraps *slog.Logger, owning an optional file handle.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// Default returns a Logger writing Info+ text logs to stderr.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// New builds a Logger per cfg, opening LogFile if set.
func New(cfg Config) *Logger {
	var writers []io.Writer
	writers = append(writers, os.Stderr)

	l := &Logger{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o750); err == nil {
			if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640); err == nil {
				l.file = f
				writers = append(writers, f)
			}
		}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog()}
	dest := io.MultiWriter(writers...)
	if cfg.JSON || l.file != nil {
		handler = slog.NewJSONHandler(dest, opts)
	} else {
		handler = slog.NewTextHandler(dest, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	l.Logger = logger
	return l
}

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
