package cliconfig

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyface-de/cyup/pkg/log"
)

// NewLogger returns a console logger on stderr at the named level.
func NewLogger(level string) *log.ZerologAdapter {
	return newLogger(os.Stderr, level)
}

func newLogger(out io.Writer, level string) *log.ZerologAdapter {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		Level(log.ParseLevel(level)).
		With().Timestamp().Logger()
	return log.NewZerologAdapterWithLogger(zl)
}
