// Package debug is the category logger shared by every goroutine. It is
// silent until Enable is called, so hot paths can log freely.
package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger  *logrus.Logger
	file    *os.File
	mu      sync.RWMutex
	enabled bool
)

// LogPath is ~/.config/go-mtcgen/debug.log
func LogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-mtcgen", "debug.log"), nil
}

// Enable starts debug logging to LogPath, truncating the previous run.
func Enable() error {
	path, err := LogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	EnableTo(f)
	mu.Lock()
	file = f
	mu.Unlock()
	return nil
}

// EnableTo logs to w instead of the log file (headless mode, tests).
func EnableTo(w io.Writer) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	mu.Lock()
	closeFileLocked()
	logger = l
	enabled = true
	mu.Unlock()

	Log("debug", "=== Debug logging started ===")
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	closeFileLocked()
	logger = nil
	enabled = false
}

func closeFileLocked() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// SetVerbose switches between every category line (true) and warnings only.
func SetVerbose(v bool) {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return
	}
	if v {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
}

// Enabled reports whether a logger is active.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func entry(category string) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled || logger == nil {
		return nil
	}
	return logger.WithField("cat", category)
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	if e := entry(category); e != nil {
		e.Infof(format, args...)
	}
}

// Warn is Log at warning level; it survives SetVerbose(false).
func Warn(category, format string, args ...any) {
	if e := entry(category); e != nil {
		e.Warnf(format, args...)
	}
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	counters   = make(map[string]int)
	countersMu sync.Mutex
)

func LogEvery(n int, category, format string, args ...any) {
	if n <= 0 || !Enabled() {
		return
	}
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
