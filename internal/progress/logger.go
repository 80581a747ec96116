package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorEntry represents an error log entry
type ErrorEntry struct {
	Path      string
	Kind      string
	Error     string
	Timestamp time.Time
}

// ErrorLogger appends study failures to a log file.
type ErrorLogger struct {
	mu      sync.Mutex
	logFile string
	errors  []ErrorEntry
	file    *os.File
	now     func() time.Time
}

// NewErrorLogger creates a new error logger. An empty logFile keeps entries
// in memory only.
func NewErrorLogger(logFile string) (*ErrorLogger, error) {
	logger := &ErrorLogger{
		logFile: logFile,
		errors:  []ErrorEntry{},
		now:     time.Now,
	}

	if logFile != "" {
		// Ensure parent directory exists
		dir := filepath.Dir(logFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}

		// Open file for appending
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		logger.file = file
	}

	return logger, nil
}

// Log records a failure for path.
func (l *ErrorLogger) Log(path, kind, errorMsg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := ErrorEntry{
		Path:      path,
		Kind:      kind,
		Error:     errorMsg,
		Timestamp: l.now(),
	}
	l.errors = append(l.errors, entry)

	if l.file != nil {
		line := fmt.Sprintf("%s | %s | %s | %s\n",
			entry.Timestamp.Format(time.RFC3339),
			kind,
			path,
			errorMsg)
		l.file.WriteString(line)
	}
}

// Entries returns a copy of the logged entries.
func (l *ErrorLogger) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorEntry(nil), l.errors...)
}

// Summary returns a summary of logged errors.
func (l *ErrorLogger) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.errors) == 0 {
		return "No errors"
	}
	return fmt.Sprintf("%d errors logged to %s", len(l.errors), l.logFile)
}

// ErrorCount returns the number of logged errors.
func (l *ErrorLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// Close closes the log file.
func (l *ErrorLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
