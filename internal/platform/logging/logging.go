package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"studypomo/internal/platform/config"
)

// New builds a logger writing to out. Format "text" uses the console writer, anything else JSON.
func New(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stderr && out != os.Stdout}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// OpenFile returns a logger appending to path; the caller closes the returned file.
func OpenFile(cfg config.LoggingConfig, path string) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return New(cfg, f), f, nil
}
