package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Options configures the process-wide logger.
type Options struct {
	Level  string
	Debug  bool
	Output io.Writer
}

var (
	mu       sync.RWMutex
	instance = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
)

// Init replaces the global logger. Debug wins over Level.
func Init(opts Options) {
	level := log.InfoLevel
	if opts.Level != "" {
		if parsed, err := log.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = parsed
		}
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	mu.Lock()
	instance = l
	mu.Unlock()
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func Debug(message string, keyvals ...any) { get().Debug(message, keyvals...) }

func Info(message string, keyvals ...any) { get().Info(message, keyvals...) }

func Warn(message string, keyvals ...any) { get().Warn(message, keyvals...) }

func Error(message string, keyvals ...any) { get().Error(message, keyvals...) }

// Fatal logs at FATAL level and exits the process with status 1.
func Fatal(message string, keyvals ...any) { get().Fatal(message, keyvals...) }
