package orchestrator

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxLogSize is the size past which a debug log is rotated to .1 when the
// next run opens it.
const maxLogSize = 16 << 20

var (
	pkgLogger   *DebugLogger
	pkgLoggerMu sync.RWMutex
)

// SetLogger sets the package-level debug logger.
func SetLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	l.Log(format, args...)
}

// DebugLogger appends timestamped lines to a run's debug log. The zero
// value and a nil logger discard everything.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
	out  *log.Logger
}

// NewDebugLogger opens logPath for appending. An empty path gives a no-op
// logger. A log grown past maxLogSize is first moved to logPath.1.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxLogSize {
		if err := os.Rename(logPath, logPath+".1"); err != nil {
			return nil, fmt.Errorf("rotate log file: %w", err)
		}
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := &DebugLogger{file: f, out: log.New(f, "", log.Ltime|log.Lmicroseconds)}
	l.Log("=== meanbrain debug log started at %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid())
	return l, nil
}

// LogPath is where a run writing into stateDir keeps its debug log.
func LogPath(stateDir string) string {
	return filepath.Join(stateDir, "logs", "debug.log")
}

// NewDebugLoggerForDir opens the debug log of stateDir, or returns a
// no-op logger if it cannot be opened.
func NewDebugLoggerForDir(stateDir string) *DebugLogger {
	l, err := NewDebugLogger(LogPath(stateDir))
	if err != nil {
		log.Printf("[orchestrator] debug log disabled: %v", err)
		return &DebugLogger{}
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one line.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf(format, args...)
}

// Enabled reports whether lines go anywhere.
func (l *DebugLogger) Enabled() bool {
	return l != nil && l.out != nil
}

// Close closes the log file. Safe on nil and no-op loggers.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = nil
	return l.file.Close()
}
