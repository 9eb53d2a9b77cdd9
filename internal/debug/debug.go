package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	enabled      = os.Getenv("ORCH_DEBUG") != ""
	verboseMode  = false
	quietMode    = false
	logMutex     sync.Mutex
	eventLogPath = ""
	runID        = fmt.Sprintf("%d", time.Now().Unix())
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func Printf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Printf(format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// SetEventLogPath overrides where LogEvent writes. An empty path restores
// discovery of .orchestrator/events.log from the working directory.
func SetEventLogPath(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLogPath = path
}

// LogEvent writes an event to .orchestrator/events.log
// Format: TIMESTAMP|EVENT_CODE|TARGET|DOCUMENT|RUN_ID|DETAILS
func LogEvent(eventCode, target, document, details string) {
	logMutex.Lock()
	path := eventLogPath
	logMutex.Unlock()

	if path == "" {
		projectRoot, err := findProjectRoot()
		if err != nil {
			// Silent fail if not in a project
			return
		}
		path = filepath.Join(projectRoot, ".orchestrator", "events.log")
	}

	if target == "" {
		target = "none"
	}
	if document == "" {
		document = "none"
	}
	// Keep one event per line.
	details = strings.ReplaceAll(details, "\n", " ")

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s|%s\n",
		timestamp, eventCode, target, document, runID, details)

	// Thread-safe write
	logMutex.Lock()
	defer logMutex.Unlock()

	// Ensure directory exists
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	// Append to log file
	// #nosec G304 - path is the project event log
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// Silent fail - don't interrupt operations if logging fails
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		orchDir := filepath.Join(dir, ".orchestrator")
		if info, err := os.Stat(orchDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in an orchestrator project")
		}
		dir = parent
	}
}
