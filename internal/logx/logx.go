// Package logx is Chibi's structured logging facade. It keeps the call shape
// of the teacher's pkg/logger (component + message + fields) but is backed by
// zerolog instead of a bespoke writer.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	logger  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()
	verbose = false
)

// Configure points logx at w and sets the verbosity used to gate Debug calls.
func Configure(w io.Writer, isVerbose bool) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).With().Timestamp().Logger()
	verbose = isVerbose
}

func fieldsEvent(ev *zerolog.Event, component string, fields map[string]any) *zerolog.Event {
	ev = ev.Str("component", component)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}

// DebugCF logs a debug-level message scoped to component, with fields. Silent
// unless Configure was called with isVerbose=true.
func DebugCF(component, msg string, fields map[string]any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fieldsEvent(logger.Debug(), component, fields).Msg(msg)
}

// InfoCF logs an info-level message.
func InfoCF(component, msg string, fields map[string]any) {
	mu.RLock()
	defer mu.RUnlock()
	fieldsEvent(logger.Info(), component, fields).Msg(msg)
}

// WarnCF logs a warning.
func WarnCF(component, msg string, fields map[string]any) {
	mu.RLock()
	defer mu.RUnlock()
	fieldsEvent(logger.Warn(), component, fields).Msg(msg)
}

// ErrorCF logs an error.
func ErrorCF(component, msg string, fields map[string]any) {
	mu.RLock()
	defer mu.RUnlock()
	fieldsEvent(logger.Error(), component, fields).Msg(msg)
}
