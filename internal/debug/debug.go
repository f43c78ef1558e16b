// Package debug provides diagnostic logging that stays off stdio while
// the MCP transport owns it. Output is disabled unless explicitly routed
// to a writer or a log file.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/mcpify/mcpify/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're running in MCP mode (set by main)
var MCPMode = false

var (
	debugMutex  sync.Mutex
	debugOutput io.Writer
	debugFile   *os.File
)

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile routes debug output to a timestamped file under the
// system temp directory. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "mcpify-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is enabled and we're not in MCP mode
func IsDebugEnabled() bool {
	if MCPMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		return true
	}
	return false
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log provides structured debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogDetect provides debug logging specifically for detection passes
func LogDetect(format string, args ...interface{}) {
	Log("DETECT", format, args...)
}

// LogDispatch provides debug logging specifically for tool invocations
func LogDispatch(format string, args ...interface{}) {
	Log("DISPATCH", format, args...)
}

// LogMCP provides debug logging specifically for MCP operations
func LogMCP(format string, args ...interface{}) {
	Log("MCP", format, args...)
}
