package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns the process logger. Output goes to stdout, which is where the
// Cloud Functions runtime collects function logs.
func New() zerolog.Logger {
	return NewWithWriter(os.Stdout, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
}

// NewWithWriter builds a logger writing to w. env "development" switches to
// the human readable console format.
func NewWithWriter(w io.Writer, env, level string) zerolog.Logger {
	// For Google Cloud Logging, the level field name should be "severity".
	// This allows Cloud Logging to automatically parse the log level.
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(w).With().Timestamp().Logger()
	if env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
