// Package logging configures the logrus logger behind the service layer and the
// HTTP retry adapter. User-facing command output goes through grove-core's unified
// logger instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.RWMutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Configure sets the log level and, when file is non-empty, redirects logs to it.
// The returned closer releases the file.
func Configure(level, file string) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(lvl)

	if file == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	base.SetOutput(f)
	base.SetFormatter(&logrus.JSONFormatter{})
	return f, nil
}

// Silence discards log output, for use while a TUI owns the terminal.
// A log file configured earlier keeps receiving records.
func Silence() {
	mu.Lock()
	defer mu.Unlock()
	if base.Out == os.Stderr {
		base.SetOutput(io.Discard)
	}
}

// Base returns the shared logger.
func Base() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// NewLogger returns an entry tagged with component.
func NewLogger(component string) *logrus.Entry {
	return Base().WithField("component", component)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
