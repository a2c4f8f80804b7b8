package ipc

import (
	"os"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
		ok   bool
	}{
		{"start", CmdStart, true},
		{" STOP\n", CmdStop, true},
		{"toggle", CmdToggle, true},
		{"resume", CmdAuto, true},
		{"auto", CmdAuto, true},
		{"pause", CmdPause, true},
		{"reload", CmdReload, true},
		{"quit", CmdQuit, true},
		{"manual", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCommand(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	ch := NewChannel(t.TempDir())

	cmd, err := ch.ReadCommand()
	if err != nil || cmd != "" {
		t.Fatalf("empty channel: got %q, %v", cmd, err)
	}

	if err := ch.WriteCommand(CmdToggle); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	cmd, err = ch.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd != CmdToggle {
		t.Errorf("got %q, want toggle", cmd)
	}

	// Consumed: a second read sees nothing.
	cmd, err = ch.ReadCommand()
	if err != nil || cmd != "" {
		t.Errorf("second read: got %q, %v", cmd, err)
	}
}

func TestWriteCommandRejectsUnknown(t *testing.T) {
	ch := NewChannel(t.TempDir())
	if err := ch.WriteCommand("explode"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(ch.CommandPath()); !os.IsNotExist(err) {
		t.Error("command file should not exist")
	}
}

func TestReadCommandConsumesGarbage(t *testing.T) {
	ch := NewChannel(t.TempDir())
	if err := os.WriteFile(ch.CommandPath(), []byte("rm -rf"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.ReadCommand(); err == nil {
		t.Error("expected error for unknown command")
	}
	if cmd, err := ch.ReadCommand(); err != nil || cmd != "" {
		t.Errorf("garbage should be consumed, got %q, %v", cmd, err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	ch := NewChannel(t.TempDir())
	elapsed := int64(42)
	now := time.Now().UTC().Truncate(time.Second)

	in := &StatusSnapshot{
		Mode:           ModeAuto,
		IsRecording:    true,
		TargetDetected: true,
		TargetName:     "Kiwoom.exe",
		ElapsedSeconds: &elapsed,
		FrameCount:     41,
		OutputDir:      "/rec/recording_20260101_090000",
		LastAction:     "recording-started",
		Timestamp:      now,
		PID:            1234,
	}
	if err := ch.WriteStatus(in); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	out, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if out.TargetName != "Kiwoom.exe" || out.FrameCount != 41 || !out.IsRecording {
		t.Errorf("unexpected snapshot %+v", out)
	}
	if out.ElapsedSeconds == nil || *out.ElapsedSeconds != 42 {
		t.Errorf("elapsed_seconds = %v", out.ElapsedSeconds)
	}
	if out.Stale(now.Add(time.Second), 5*time.Second) {
		t.Error("fresh snapshot reported stale")
	}
	if !out.Stale(now.Add(time.Minute), 5*time.Second) {
		t.Error("old snapshot not reported stale")
	}
}

func TestReadStatusMissing(t *testing.T) {
	ch := NewChannel(t.TempDir())
	if _, err := ch.ReadStatus(); !os.IsNotExist(err) {
		t.Errorf("want not-exist error, got %v", err)
	}
}
