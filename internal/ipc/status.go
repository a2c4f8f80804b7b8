package ipc

import (
	"encoding/json"
	"os"
	"time"

	"github.com/tiroq/htswatch/internal/fileutil"
)

// OperatingMode controls whether detection edges drive recording.
type OperatingMode string

const (
	ModeAuto   OperatingMode = "auto"   // edges start and stop sessions
	ModePaused OperatingMode = "paused" // detection frozen, sessions untouched
)

// StatusSnapshot is the daemon state the CLI renders.
type StatusSnapshot struct {
	Mode           OperatingMode `json:"mode"`
	IsRecording    bool          `json:"is_recording"`
	TargetDetected bool          `json:"target_detected"`
	TargetName     string        `json:"target_name,omitempty"`
	ElapsedSeconds *int64        `json:"elapsed_seconds,omitempty"`
	FrameCount     int           `json:"frame_count"`
	OutputDir      string        `json:"output_dir,omitempty"`
	LastAction     string        `json:"last_action"`
	LastError      string        `json:"last_error"`
	Timestamp      time.Time     `json:"timestamp"`
	HubAddr        string        `json:"hub_addr,omitempty"`
	PID            int           `json:"pid"`
}

// WriteStatus replaces the snapshot atomically.
func (c *Channel) WriteStatus(status *StatusSnapshot) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return fileutil.WriteJSONAtomic(c.StatusPath(), status)
}

// ReadStatus loads the last snapshot.
func (c *Channel) ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(c.StatusPath())
	if err != nil {
		return nil, err
	}
	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stale reports whether the snapshot is older than maxAge at now.
func (s *StatusSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}
