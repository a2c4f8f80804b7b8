// Package fileutil names and writes the files a capture session produces.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionMetadataFile is the sidecar written into each recording directory
// when the session stops.
const SessionMetadataFile = "session.json"

// SessionMetadata describes one finished capture session.
type SessionMetadata struct {
	Version         string    `json:"version"`
	Directory       string    `json:"directory"`
	StartedAt       time.Time `json:"started_at"`
	StoppedAt       time.Time `json:"stopped_at"`
	Duration        string    `json:"duration"`
	DurationMs      int64     `json:"duration_ms"`
	Target          string    `json:"target,omitempty"` // matched process name
	StartOrigin     string    `json:"start_origin"`     // auto or manual
	StopOrigin      string    `json:"stop_origin"`
	Source          string    `json:"capture_source"`
	FrameIntervalMs int       `json:"frame_interval_ms"`
	FrameCount      int       `json:"frame_count"`
}

// WriteSessionMetadata writes <dir>/session.json atomically.
func WriteSessionMetadata(dir string, meta *SessionMetadata) error {
	if err := WriteJSONAtomic(filepath.Join(dir, SessionMetadataFile), meta); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	return nil
}

// ReadSessionMetadata loads <dir>/session.json.
func ReadSessionMetadata(dir string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, SessionMetadataFile))
	if err != nil {
		return nil, err
	}
	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse session metadata: %w", err)
	}
	return &meta, nil
}
