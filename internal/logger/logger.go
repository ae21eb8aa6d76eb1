package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New() zerolog.Logger {
	return newLogger(os.Stdout, zerolog.DebugLevel)
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(level)
}

// SetLevel applies a configured level name to every logger. Unknown names
// leave the level unchanged.
func SetLevel(level string) bool {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return false
	}
	zerolog.SetGlobalLevel(l)
	return true
}

// Component tags every event with the emitting component.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

var Module = fx.Provide(New)
