package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelWarn, false)
)

func init() {
	scigoErrors.SetZerologWarnFunc(func(w error) {
		GetLoggerWithName("warnings").Warn(w.Error(), "warning", w)
	})
}

// GetLogger returns the default logger of the active provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetProvider replaces the active provider and returns the previous one.
func SetProvider(p LoggerProvider) LoggerProvider {
	providerMu.Lock()
	defer providerMu.Unlock()
	prev := provider
	provider = p
	return prev
}

// SetLevel sets the minimum level of the active provider.
func SetLevel(level Level) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider.SetLevel(level)
}

// SetupLogger installs a zerolog provider writing to w at the named level.
func SetupLogger(w io.Writer, level string, pretty bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetProvider(NewZerologProvider(w, lvl, pretty))
	return nil
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, scigoErrors.NewValidationError("log_level", fmt.Sprintf("unknown level %q", level), level)
	}
}
