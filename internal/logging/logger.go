package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultBufferSize = 10000 // large buffer for bursts
	defaultMaxSize    = 64 << 20
)

// ParseLevel maps a config string onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds the process logger. Text goes to stdout; when file is set a
// JSON copy is written through an AsyncWriter. The returned closer flushes
// that file and is a no-op otherwise.
func New(level, file string) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	console := slog.NewTextHandler(os.Stdout, opts)
	if file == "" {
		return slog.New(console), nopCloser{}, nil
	}

	aw, err := NewAsyncWriter(file, defaultBufferSize, NewLogRotation(defaultMaxSize))
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(fanout{console, slog.NewJSONHandler(aw, opts)}), aw, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
