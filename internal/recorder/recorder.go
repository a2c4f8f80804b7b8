// Package recorder owns the capture session: one recording at a time, each
// writing numbered PNG frames into its own directory from a background task.
package recorder

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyActive is returned by Start while a session is running.
	ErrAlreadyActive = errors.New("capture session already active")
	// ErrNotActive is returned by Stop when no session is running.
	ErrNotActive = errors.New("capture session not active")
	// ErrIO wraps directory creation failures.
	ErrIO = errors.New("recording i/o failure")
)

// DefaultFrameInterval is the frame cadence when none is configured.
const DefaultFrameInterval = time.Second

// Status is a point-in-time view of the session. OutputDir, StartedAt and
// Elapsed are zero when Active is false.
type Status struct {
	Active     bool          `json:"is_active"`
	OutputDir  string        `json:"output_dir,omitempty"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	Elapsed    time.Duration `json:"-"`
	FrameCount int           `json:"frame_count"`
}

// ElapsedSeconds returns whole seconds since start, and false when idle.
func (s Status) ElapsedSeconds() (int64, bool) {
	if !s.Active {
		return 0, false
	}
	return int64(s.Elapsed / time.Second), true
}

// Summary describes a session that Stop just ended.
type Summary struct {
	OutputDir string
	StartedAt time.Time
	StoppedAt time.Time
	Frames    int
}

// Duration is the wall time between start and stop.
func (s Summary) Duration() time.Duration {
	return s.StoppedAt.Sub(s.StartedAt)
}
