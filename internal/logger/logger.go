// Package logger adapts the Dispatcher's narrow Log collaborator to a
// file-backed logger that also keeps an in-memory ring buffer of recent
// entries, readable in-process through GetLogs. The "logs" command reads
// the log file from disk, not this buffer.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/firi/rpcendpoint/internal/rpc"
)

// Entry is a single in-memory log record.
type Entry struct {
	Timestamp time.Time
	Level     rpc.LogLevel
	Message   string
}

// FileLogger implements rpc.Log with file output and in-memory storage.
// It satisfies rpc.Log directly, so it can be handed straight to
// rpc.Config.Log.
type FileLogger struct {
	file      *os.File
	fileLevel rpc.LogLevel // minimum level written to file
	mu        sync.Mutex
	maxSize   int64
	filePath  string

	memoryLogs []Entry
	maxMemory  int
}

// NewFileLogger creates a logger writing to logPath, rotating (by
// deleting) the file if it has grown past 1MB since the last run.
// fileLevel is the minimum severity written to disk; every level is
// always kept in the in-memory ring buffer regardless.
func NewFileLogger(logPath string, fileLevel rpc.LogLevel) (*FileLogger, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	maxSize := int64(1024 * 1024)
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		os.Remove(logPath)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	return &FileLogger{
		file:       file,
		fileLevel:  fileLevel,
		maxSize:    maxSize,
		filePath:   logPath,
		memoryLogs: make([]Entry, 0, 10000),
		maxMemory:  10000,
	}, nil
}

// Log implements rpc.Log.
func (l *FileLogger) Log(level rpc.LogLevel, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{Timestamp: time.Now(), Level: level, Message: text}

	if len(l.memoryLogs) >= l.maxMemory {
		l.memoryLogs = l.memoryLogs[1:]
	}
	l.memoryLogs = append(l.memoryLogs, entry)

	if level >= l.fileLevel {
		formatted := fmt.Sprintf("[%s] [%s] %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			levelString(level),
			entry.Message)
		l.file.WriteString(formatted)
	}
}

func levelString(level rpc.LogLevel) string {
	switch level {
	case rpc.LogWarning:
		return "WARNING"
	case rpc.LogSevere:
		return "SEVERE"
	default:
		return "INFO"
	}
}

// Close closes the underlying log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// GetLogs returns every in-memory entry at or above minLevel, newest
// last, one per line.
func (l *FileLogger) GetLogs(minLevel rpc.LogLevel) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []string
	for _, entry := range l.memoryLogs {
		if entry.Level >= minLevel {
			result = append(result, fmt.Sprintf("[%s] [%s] %s",
				entry.Timestamp.Format("2006-01-02 15:04:05.000"),
				levelString(entry.Level),
				entry.Message))
		}
	}
	return strings.Join(result, "\n")
}

// NullLogger discards everything; rpc.Config.Log already defaults to an
// internal no-op, but this is exported for callers assembling their own
// Config explicitly.
type NullLogger struct{}

func (NullLogger) Log(rpc.LogLevel, string) {}
