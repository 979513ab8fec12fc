package slogutil

import (
	"io"
	"log/slog"

	"github.com/kornysietsma/polyglot-code-scanner/internal/config"
)

// NewScanLogger builds the logger used by a scan: records at cliLevel or above
// go to stderr, and when cfg.File is set every record at the configured file
// level is also appended to a rotating log file. The returned closer must be
// closed when the scan ends; it is a no-op when no file is configured.
func NewScanLogger(stderr io.Writer, cfg config.LoggingConfig, cliLevel slog.Level) (*slog.Logger, io.Closer, error) {
	console := NewLineHandler(stderr, &slog.HandlerOptions{Level: cliLevel})
	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	rf, err := OpenRotatingFile(cfg.File, ParseSize(cfg.MaxSize), cfg.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	file := NewLineHandler(rf, &slog.HandlerOptions{Level: LevelFromString(cfg.Level)})
	return slog.New(NewTeeHandler(console, file)), rf, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
