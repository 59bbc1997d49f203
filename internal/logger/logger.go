package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Setup configures the process-wide logger. Console output goes to
// stderr; when logDir is non-empty a JSON copy of every event is also
// appended to gdapctl.log in that directory so long batch runs leave an
// audit trail.
func Setup(debug bool, logDir string) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
		return time.Now().Format(time.RFC3339)
	}}

	var out io.Writer = console
	if logDir != "" {
		f, err := os.OpenFile(filepath.Join(logDir, "gdapctl.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err == nil {
			out = zerolog.MultiLevelWriter(console, f)
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if debug {
		logger = logger.With().Caller().Logger()
	}

	return logger
}
