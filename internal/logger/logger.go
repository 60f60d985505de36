// Package logger wires the global zerolog logger: console output plus an
// optional size-rotated log file.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the zerolog global logger. level is one of zerolog's
// level strings ("debug", "info", ...); filePath enables rotated file
// output when non-empty.
func Init(level, filePath string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if filePath != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
