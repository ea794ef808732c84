// Package logging provides named component loggers for chum.
//
// Log output goes to stderr so it never contaminates the manifest stream
// on stdout. Loggers are silent at levels below the configured one; the
// default level is warn so a normal run prints nothing but the progress
// line.
//
// Basic usage:
//
//	logging.Init("debug")
//	logger := logging.Get("walker")
//	logger.Debug("skipping entry", "path", rel)
package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// state guards the configured level and the per-component logger cache.
type state struct {
	mu      sync.Mutex
	level   log.Level
	loggers map[string]*log.Logger
}

var globalState = &state{
	level:   log.WarnLevel,
	loggers: make(map[string]*log.Logger),
}

// Init sets the global log level from its string form (debug, info, warn,
// error). Loggers obtained before and after Init observe the new level.
func Init(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()
	globalState.level = parsed
	for _, l := range globalState.loggers {
		l.SetLevel(parsed)
	}
	return nil
}

// Get returns the logger for the named component, creating it on first use.
func Get(component string) *log.Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if l, ok := globalState.loggers[component]; ok {
		return l
	}

	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          component,
		ReportTimestamp: false,
		Level:           globalState.level,
	})
	globalState.loggers[component] = l
	return l
}
