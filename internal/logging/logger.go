// Package logging wraps zerolog behind a small set of package-level
// helpers so every component in the service logs through one
// consistently configured logger instead of ad hoc fmt.Println calls.
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger("info")
}

// Init configures the global logger from a level string ("debug",
// "info", "warn", "error"). Safe to call once at startup; later calls
// reconfigure it.
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(level)
}

func initLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug starts a debug-level log event.
func Debug() *zerolog.Event { l := Logger(); return l.Debug() }

// Info starts an info-level log event.
func Info() *zerolog.Event { l := Logger(); return l.Info() }

// Warn starts a warn-level log event.
func Warn() *zerolog.Event { l := Logger(); return l.Warn() }

// Error starts an error-level log event.
func Error() *zerolog.Event { l := Logger(); return l.Error() }

// Fatal starts a fatal-level log event; Msg/Msgf on it calls os.Exit(1).
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }
