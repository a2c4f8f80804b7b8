package config

import (
	"testing"
	"time"
)

func TestStore_ReplaceIsWholeValue(t *testing.T) {
	s := NewStore(Default(), "")

	next := Config{OutputDir: "/only/this"}
	s.Replace(next)

	got := s.Get()
	if got.OutputDir != "/only/this" {
		t.Errorf("output_dir = %q", got.OutputDir)
	}
	if len(got.Target.ProcessNames) != 0 {
		t.Errorf("replace must not merge: process_names = %v", got.Target.ProcessNames)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(Default(), "")

	a := s.Get()
	a.Target.ProcessNames[0] = "mutated"

	if b := s.Get(); b.Target.ProcessNames[0] != "kiwoom.exe" {
		t.Errorf("store leaked its slice: %v", b.Target.ProcessNames)
	}
}

func TestStore_Intervals(t *testing.T) {
	cfg := Default()
	cfg.Target.CheckIntervalMs = 250
	cfg.Capture.FrameIntervalMs = 0
	s := NewStore(cfg, "")

	if got := s.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", got)
	}
	if got := s.FrameInterval(); got != time.Second {
		t.Errorf("FrameInterval fallback = %v, want 1s", got)
	}
}
