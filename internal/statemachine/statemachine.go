// Package statemachine turns a stream of detection results into start and
// stop decisions. Only changes between consecutive polls produce a decision.
package statemachine

import (
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/detector"
	"github.com/tiroq/htswatch/internal/ipc"
)

// State is the last observed detection level.
type State int

const (
	Idle   State = iota // target not running
	Active              // target running
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Transition is the decision produced by one observation.
type Transition int

const (
	None    Transition = iota // no edge
	Started                   // Idle -> Active
	Stopped                   // Active -> Idle
)

func (t Transition) String() string {
	switch t {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	}
	return "none"
}

// StateMachine is safe for concurrent use: the orchestrator observes while
// command handlers change the mode.
type StateMachine struct {
	mu     sync.Mutex
	state  State
	mode   ipc.OperatingMode
	target string
	since  time.Time
}

// New returns an Idle machine in auto mode.
func New() *StateMachine {
	return &StateMachine{mode: ipc.ModeAuto}
}

// Observe feeds one poll result. In paused mode the result is ignored and
// the state is left as it was, so resuming compares against the level seen
// before the pause.
func (sm *StateMachine) Observe(r detector.DetectionResult) Transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.mode == ipc.ModePaused {
		return None
	}

	switch {
	case sm.state == Idle && r.Found:
		sm.state = Active
		sm.target = r.Name
		sm.since = r.EvaluatedAt
		return Started
	case sm.state == Active && !r.Found:
		sm.state = Idle
		sm.target = ""
		sm.since = r.EvaluatedAt
		return Stopped
	}
	return None
}

// State returns the current state.
func (sm *StateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// Target returns the process name matched on the last rising edge, or ""
// while Idle.
func (sm *StateMachine) Target() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.target
}

// Since returns when the current state was entered. Zero before the first
// edge.
func (sm *StateMachine) Since() time.Time {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.since
}

// Mode returns the operating mode.
func (sm *StateMachine) Mode() ipc.OperatingMode {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.mode
}

// SetMode switches between auto and paused.
func (sm *StateMachine) SetMode(mode ipc.OperatingMode) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.mode = mode
}

// ToggleMode flips auto and paused and returns the new mode.
func (sm *StateMachine) ToggleMode() ipc.OperatingMode {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.mode == ipc.ModeAuto {
		sm.mode = ipc.ModePaused
	} else {
		sm.mode = ipc.ModeAuto
	}
	return sm.mode
}
