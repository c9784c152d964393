package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a logger writes.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel parses debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is a component-scoped logger. Every component of the process appends
// to the same run log file: <dir>/<session-id>-booker.log.
//
// Loggers are cheap and may be created in package init functions; the log
// file is opened on the first write, after Configure has had a chance to run.
type Logger struct {
	component string
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	minLevel atomic.Int32

	// mu guards the shared destination below
	mu      sync.Mutex
	logDir  string
	out     io.Writer
	file    *os.File
	logPath string
)

func init() {
	minLevel.Store(int32(LevelInfo))
}

func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// NewLogger creates a logger for a specific component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// Configure sets the log directory and minimum level. An already open log
// file is closed; the next write opens a file in the new directory.
// An empty dir selects ~/.booker/logs.
func Configure(dir string, level Level) error {
	mu.Lock()
	defer mu.Unlock()

	minLevel.Store(int32(level))
	if err := closeLocked(); err != nil {
		return err
	}
	logDir = dir
	return nil
}

// SetOutput redirects every logger to w, bypassing the log file.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	_ = closeLocked()
	out = w
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level Level) {
	minLevel.Store(int32(level))
}

func defaultLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".booker", "logs"), nil
}

// writerLocked opens the run log on first use. If the directory or file
// cannot be created it falls back to stderr and reports why once.
func writerLocked() io.Writer {
	if out != nil {
		return out
	}

	dir := logDir
	if dir == "" {
		d, err := defaultLogDir()
		if err != nil {
			return fallbackLocked(err)
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fallbackLocked(fmt.Errorf("failed to create log directory: %w", err))
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-booker.log", getSessionID()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fallbackLocked(fmt.Errorf("failed to open log file: %w", err))
	}

	file, out, logPath = f, f, path
	return out
}

func fallbackLocked(err error) io.Writer {
	out = os.Stderr
	fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize file logging: %v\n", err)
	fmt.Fprintln(os.Stderr, "Falling back to stderr logging")
	return out
}

func closeLocked() error {
	var err error
	if file != nil {
		err = file.Close()
	}
	file, out, logPath = nil, nil, ""
	return err
}

// formatLogEntry creates a structured log entry with timestamp, component, and level
func (l *Logger) formatLogEntry(level Level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if level < Level(minLevel.Load()) {
		return
	}
	entry := l.formatLogEntry(level, fmt.Sprintf(format, v...))

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(writerLocked(), entry)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(LevelError, format, v...)
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// Dir returns the directory run logs are written to.
func Dir() (string, error) {
	mu.Lock()
	dir := logDir
	mu.Unlock()
	if dir != "" {
		return dir, nil
	}
	return defaultLogDir()
}

// LogPath returns the path of the open run log, or "" when logging to
// stderr or nothing was written yet.
func LogPath() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Close closes the run log file. Safe to call multiple times.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}
