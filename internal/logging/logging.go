// Package logging builds the zerolog logger shared by every component of the service.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log lines are written.
type Config struct {
	Level   string    // trace, debug, info, warn, error
	Env     string    // "DEV" selects the human readable console writer
	File    string    // optional rotated log file
	Outputs []io.Writer
}

// FileRotation limits for the optional log file.
const (
	maxFileSizeMB  = 100
	maxFileAgeDays = 30
	maxFileBackups = 10
)

// New creates a logger from the configuration. The returned closer flushes and closes the
// rotated log file, if one was configured.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []io.Writer{os.Stdout}
	}

	writers := make([]io.Writer, 0, len(outputs)+1)
	for _, out := range outputs {
		if cfg.Env == "DEV" {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
		}
		writers = append(writers, out)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "[logging.New] create log directory")
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxFileSizeMB,
			MaxAge:     maxFileAgeDays,
			MaxBackups: maxFileBackups,
			Compress:   true,
			LocalTime:  true,
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
