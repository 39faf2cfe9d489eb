// Package logger provides leveled structured logging backed by zerolog.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init initializes the default logger with the specified level and format.
// Format "text" writes a colored console stream, anything else writes JSON.
func Init(level string, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if strings.ToLower(format) == "text" {
		out = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		out = zerolog.New(os.Stderr)
	}

	defaultLogger = out.Level(lvl).With().Timestamp().Logger()
}

func Debug(format string, args ...any) {
	defaultLogger.Debug().Msgf(format, args...)
}

func Info(format string, args ...any) {
	defaultLogger.Info().Msgf(format, args...)
}

func Warn(format string, args ...any) {
	defaultLogger.Warn().Msgf(format, args...)
}

func Error(format string, args ...any) {
	defaultLogger.Error().Msgf(format, args...)
}

// Fatal logs the message and exits the process.
func Fatal(format string, args ...any) {
	defaultLogger.Fatal().Msgf(format, args...)
}
