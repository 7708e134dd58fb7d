package logger

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu  sync.RWMutex
	std = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
)

// SetLevel updates the global log level from a config string
// (debug, info, warn, error). Unknown values keep the current level.
func SetLevel(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	std.SetLevel(parsed)
}

// InfoC logs an info message tagged with a component name.
func InfoC(component, msg string) {
	InfoCF(component, msg, nil)
}

// InfoCF logs an info message with a component tag and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Info(msg, kv(component, fields)...)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Warn(msg, kv(component, fields)...)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Error(msg, kv(component, fields)...)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Debug(msg, kv(component, fields)...)
}

func kv(component string, fields map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, 2+2*len(fields))
	out = append(out, "component", component)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
