package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes and how verbose it is.
type Options struct {
	Level      string // trace|debug|info|warn|error
	Console    bool
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the application logger. Console output is human-readable,
// file output is JSON rotated by lumberjack.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer

	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(level)
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
