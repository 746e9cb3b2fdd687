package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog logger configured for console output at info level.
func NewLogger() zerolog.Logger {
	return newConsole(os.Stdout, zerolog.InfoLevel)
}

// NewLoggerLevel returns a console logger at the named level ("debug", "warn", ...).
// Unknown or empty names fall back to info.
func NewLoggerLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return newConsole(os.Stdout, lvl)
}

// Nop returns a logger that discards everything. Library defaults and tests use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func newConsole(out io.Writer, lvl zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	zerolog.CallerMarshalFunc = shortCaller
	return zerolog.New(output).Level(lvl).With().Timestamp().Caller().Logger()
}

// shortCaller keeps only the file name and pads it so log columns line up.
func shortCaller(pc uintptr, file string, line int) string {
	short := file
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		short = file[i+1:]
	}
	return fmt.Sprintf("%-24s", fmt.Sprintf("%s:%d", short, line))
}
