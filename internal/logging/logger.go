package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "async-translator"

func New(environment, level string) (zerolog.Logger, error) {
	return NewWithWriter(environment, level, os.Stdout)
}

// NewWithFile logs to stdout and, when path is not blank, also appends JSON
// lines to the file at path. The returned close func is never nil.
func NewWithFile(environment, level, path string) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }
	path = strings.TrimSpace(path)
	if path == "" {
		logger, err := New(environment, level)
		return logger, noop, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Logger{}, noop, fmt.Errorf("create log directory for LOG_FILE=%q: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, noop, fmt.Errorf("open LOG_FILE=%q: %w", path, err)
	}

	logger, err := build(environment, level, zerolog.MultiLevelWriter(consoleOrJSON(environment, os.Stdout), file))
	if err != nil {
		_ = file.Close()
		return zerolog.Logger{}, noop, err
	}
	return logger, file.Close, nil
}

// NewWithWriter builds the service logger on top of out. Local environments get
// the human-readable console writer; everything else logs JSON lines.
func NewWithWriter(environment, level string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stdout
	}
	return build(environment, level, consoleOrJSON(environment, out))
}

func consoleOrJSON(environment string, out io.Writer) io.Writer {
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return out
}

func build(environment, level string, writer io.Writer) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return logger, nil
}
