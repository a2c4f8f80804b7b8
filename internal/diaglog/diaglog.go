// Package diaglog writes opt-in NDJSON diagnostic events for htswatch.
// It is switched on with HTSWATCH_DEBUG_RECORDING=true; otherwise every Log
// call is a no-op and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

const (
	// EnvDebug enables the diagnostic log when set to "true".
	EnvDebug = "HTSWATCH_DEBUG_RECORDING"
	// EnvPath overrides the diagnostic log location.
	EnvPath = "HTSWATCH_LOG_PATH"

	defaultPath    = "/tmp/htswatch-debug.log"
	defaultMaxSize = 10 * 1024 * 1024
)

// Components.
const (
	ComponentDetector     = "detector"
	ComponentSession      = "session"
	ComponentFrameTask    = "frame-task"
	ComponentMonitor      = "monitor"
	ComponentNotifyHub    = "notify-hub"
	ComponentDiagExport   = "diag-export"
	ComponentHTSWatchCore = "htswatch-core"
)

// Events.
const (
	EventTargetDetected     = "target_detected"
	EventTargetLost         = "target_lost"
	EventEnumerationFailed  = "enumeration_failed"
	EventRecordingStart     = "recording_start"
	EventRecordingStop      = "recording_stop"
	EventFrameWritten       = "frame_written"
	EventFrameFailed        = "frame_failed"
	EventConfigReplaced     = "config_replaced"
	EventCommandReceived    = "command_received"
	EventHubClientConnected = "hub_client_connected"
	EventHubClientDropped   = "hub_client_dropped"
)

// LogEntry is one line of the diagnostic log.
type LogEntry struct {
	Timestamp string         `json:"ts"`
	Component string         `json:"component"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id,omitempty"` // recording directory name
	Reason    string         `json:"reason,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger appends LogEntry values to a size-capped file.
type Logger struct {
	mu      sync.Mutex
	rw      *rollingWriter
	enabled bool
}

// New opens path for appending when debug mode is on. When it is off the
// returned logger discards everything and path is never touched.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return NewNoOp(), nil
	}
	rw, err := newRollingWriter(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}
	return &Logger{rw: rw, enabled: true}, nil
}

// NewNoOp returns a disabled logger. Used as the fallback when New fails.
func NewNoOp() *Logger {
	return &Logger{}
}

// Enabled reports whether entries are being written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Log writes entry as a single JSON line, stamping it when Timestamp is empty.
func (l *Logger) Log(entry LogEntry) {
	if !l.Enabled() {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.rw.Write(data)
}

// Close closes the file. Safe on nil and disabled loggers.
func (l *Logger) Close() error {
	if !l.Enabled() || l.rw == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rw.close()
}

// IsDebugEnabled reports whether HTSWATCH_DEBUG_RECORDING is "true".
func IsDebugEnabled() bool {
	return os.Getenv(EnvDebug) == "true"
}

// Path returns the configured log location.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return defaultPath
}
