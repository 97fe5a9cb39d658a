package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	debugEnabled bool
	debugPath    string
	debugMutex   sync.RWMutex
	writeMutex   sync.Mutex
)

// SetDebugEnabled enables or disables debug logging
func SetDebugEnabled(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug logging is enabled
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugEnabled
}

// SetLogPath overrides the debug log location. An empty path restores the default.
func SetLogPath(path string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugPath = path
}

// LogPath returns the file debug output is appended to
func LogPath() string {
	debugMutex.RLock()
	path := debugPath
	debugMutex.RUnlock()
	if path != "" {
		return path
	}
	if path = os.Getenv("CQLMAPPER_DEBUG_LOG_PATH"); path != "" {
		return path
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "cqlmapper_debug.log")
}

// DebugToFile logs debug messages to a file
func DebugToFile(context string, message string) {
	if !IsDebugEnabled() {
		return
	}

	writeMutex.Lock()
	defer writeMutex.Unlock()

	logFile, err := os.OpenFile(LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304: Potential file inclusion via variable
	if err != nil {
		return
	}
	defer logFile.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(logFile, "[%s] Context: %s | %s\n", timestamp, context, message)
}

// DebugfToFile logs formatted debug messages to a file
func DebugfToFile(context string, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	DebugToFile(context, fmt.Sprintf(format, args...))
}
