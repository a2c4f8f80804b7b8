package testutil

import (
	"sync"

	"github.com/tiroq/htswatch/internal/notify"
)

// RecordingSink keeps every emitted event.
type RecordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

// Emit implements notify.Sink.
func (s *RecordingSink) Emit(e notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of everything emitted so far.
func (s *RecordingSink) Events() []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Event(nil), s.events...)
}

// Kinds returns the kinds of all events, skipping duration heartbeats.
func (s *RecordingSink) Kinds() []string {
	var kinds []string
	for _, e := range s.Events() {
		if e.Kind != notify.KindRecordingDuration {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// Count returns how many events of kind were emitted.
func (s *RecordingSink) Count(kind string) int {
	n := 0
	for _, e := range s.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets all events.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}
