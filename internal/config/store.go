package config

import (
	"sync"
	"time"
)

// Store holds the live configuration. Reads get a deep copy; writes replace
// the whole value without merging or validating.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore wraps cfg. path is where Persist writes; empty means DefaultPath.
func NewStore(cfg Config, path string) *Store {
	return &Store{cfg: cfg.Clone(), path: path}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Replace swaps in cfg as a whole.
func (s *Store) Replace(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	if s.path == "" {
		return DefaultPath()
	}
	return s.path
}

// Persist writes the current configuration to Path.
func (s *Store) Persist() error {
	return Save(s.Path(), s.Get())
}

// PollInterval is the orchestrator cadence derived from the target spec.
func (s *Store) PollInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return msOrDefault(s.cfg.Target.CheckIntervalMs)
}

// FrameInterval is the capture cadence.
func (s *Store) FrameInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return msOrDefault(s.cfg.Capture.FrameIntervalMs)
}

func msOrDefault(ms int) time.Duration {
	if ms <= 0 {
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}
