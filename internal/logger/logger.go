// Package logger builds the diagnostic zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/akave-ai/gpsrelay/internal/config"
)

// New returns a timestamped logger for cfg and a close func for its output.
// When DebugLogPath is set the log is appended to that file as JSON lines;
// otherwise, or if the file cannot be opened, it goes to stderr.
func New(cfg *config.ObservabilityConfig) (zerolog.Logger, func() error) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	closeFn := func() error { return nil }

	var openErr error
	if cfg.DebugLogPath != "" {
		f, err := os.OpenFile(cfg.DebugLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			openErr = err
		} else {
			out = f
			closeFn = f.Close
		}
	}

	l := zerolog.New(out).Level(cfg.Level()).With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("env", cfg.Environment).
		Logger()
	if openErr != nil {
		l.Warn().Err(openErr).Str("path", cfg.DebugLogPath).Msg("could not open debug log, using stderr")
	}
	return l, closeFn
}
