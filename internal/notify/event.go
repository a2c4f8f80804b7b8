// Package notify delivers orchestrator events to the outside world: the
// daemon log, desktop notifications and websocket clients.
package notify

import (
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/logging"
)

// Event kinds.
const (
	KindTargetDetected    = "target-detected"
	KindRecordingStarted  = "recording-started"
	KindRecordingStopped  = "recording-stopped"
	KindRecordingDuration = "recording-duration"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind           string    `json:"event"`
	Time           time.Time `json:"ts"`
	Detected       bool      `json:"detected,omitempty"`
	Target         string    `json:"target,omitempty"`
	OutputDir      string    `json:"output_dir,omitempty"`
	ElapsedSeconds int64     `json:"elapsed_seconds,omitempty"`
	Frames         int       `json:"frames,omitempty"`
	Origin         string    `json:"origin,omitempty"` // auto or manual
}

// TargetDetected reports an edge of the detection signal.
func TargetDetected(detected bool, target string) Event {
	return Event{Kind: KindTargetDetected, Time: time.Now(), Detected: detected, Target: target}
}

// RecordingStarted reports a session start into dir.
func RecordingStarted(dir, origin string) Event {
	return Event{Kind: KindRecordingStarted, Time: time.Now(), OutputDir: dir, Origin: origin}
}

// RecordingStopped reports a finished session.
func RecordingStopped(dir, origin string, frames int) Event {
	return Event{Kind: KindRecordingStopped, Time: time.Now(), OutputDir: dir, Origin: origin, Frames: frames}
}

// RecordingDuration is the per-tick heartbeat while recording.
func RecordingDuration(elapsedSeconds int64, frames int) Event {
	return Event{Kind: KindRecordingDuration, Time: time.Now(), ElapsedSeconds: elapsedSeconds, Frames: frames}
}

// Sink receives events. Emit must not block the caller for long: the
// orchestrator calls it from its polling loop.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) { f(e) }

// Nop drops every event.
var Nop Sink = SinkFunc(func(Event) {})

// Multi fans out to every non-nil sink in order.
type Multi []Sink

// Emit forwards e.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes edge events to the daemon log. Duration heartbeats are
// logged once a minute.
type LogSink struct {
	logs *logging.Loggers

	mu         sync.Mutex
	lastMinute int64
}

// NewLogSink returns a sink over l.
func NewLogSink(l *logging.Loggers) *LogSink {
	return &LogSink{logs: l.OrDiscard(), lastMinute: -1}
}

// Emit logs e.
func (s *LogSink) Emit(e Event) {
	switch e.Kind {
	case KindTargetDetected:
		if e.Detected {
			s.logs.Out.Printf("Target detected: %s", e.Target)
		} else {
			s.logs.Out.Printf("Target no longer running")
		}
	case KindRecordingStarted:
		s.mu.Lock()
		s.lastMinute = -1
		s.mu.Unlock()
		s.logs.Out.Printf("Recording started (%s): %s", e.Origin, e.OutputDir)
	case KindRecordingStopped:
		s.logs.Out.Printf("Recording stopped (%s): %s, %d frames", e.Origin, e.OutputDir, e.Frames)
	case KindRecordingDuration:
		minute := e.ElapsedSeconds / 60
		s.mu.Lock()
		changed := minute != s.lastMinute
		s.lastMinute = minute
		s.mu.Unlock()
		if changed && minute > 0 {
			s.logs.Out.Printf("Recording for %dm, %d frames", minute, e.Frames)
		}
	}
}
