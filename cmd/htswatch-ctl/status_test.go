package main

import (
	"strings"
	"testing"
	"time"

	"github.com/tiroq/htswatch/internal/history"
	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/notify"
	"github.com/tiroq/htswatch/internal/preflight"
)

func TestRenderStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	secs := int64(3725)

	tests := []struct {
		name    string
		snap    ipc.StatusSnapshot
		running bool
		want    []string
		notWant []string
	}{
		{
			name:    "recording",
			running: true,
			snap: ipc.StatusSnapshot{
				Mode: ipc.ModeAuto, IsRecording: true, TargetDetected: true, TargetName: "Kiwoom.exe",
				ElapsedSeconds: &secs, FrameCount: 3725, OutputDir: "/rec/recording_20260302_085855",
				Timestamp: now, PID: 4242, HubAddr: "127.0.0.1:7390",
			},
			want: []string{"running (pid 4242)", "Kiwoom.exe", "REC 01:02:05", "3725", "recording_20260302_085855", "ws://127.0.0.1:7390"},
		},
		{
			name:    "idle paused",
			running: true,
			snap:    ipc.StatusSnapshot{Mode: ipc.ModePaused, Timestamp: now, LastAction: "pause"},
			want:    []string{"paused", "idle", "last action", "pause"},
			notWant: []string{"REC"},
		},
		{
			name:    "stale",
			running: true,
			snap:    ipc.StatusSnapshot{Mode: ipc.ModeAuto, Timestamp: now.Add(-time.Minute)},
			want:    []string{"unresponsive"},
		},
		{
			name: "daemon gone",
			snap: ipc.StatusSnapshot{Mode: ipc.ModeAuto, Timestamp: now, LastError: "capture session not active"},
			want: []string{"not running", "last error", "capture session not active"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderStatus(&tt.snap, tt.running, now)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := map[int64]string{
		0:     "00:00:00",
		59:    "00:00:59",
		61:    "00:01:01",
		36000: "10:00:00",
	}
	for secs, want := range tests {
		if got := formatElapsed(secs); got != want {
			t.Errorf("formatElapsed(%d) = %q, want %q", secs, got, want)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	if out := renderHistory(nil); !strings.Contains(out, "No recorded sessions") {
		t.Errorf("empty history: %q", out)
	}

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	stop := start.Add(90 * time.Second)
	out := renderHistory([]history.SessionRecord{
		{Directory: "/rec/a", StartOrigin: "auto", StopOrigin: "auto", StartedAt: start, StoppedAt: &stop, Frames: 90},
		{Directory: "/rec/b", StartOrigin: "manual", StartedAt: start.Add(time.Hour)},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "00:01:30") || !strings.Contains(lines[0], "auto/auto") || !strings.Contains(lines[0], "90 frames") {
		t.Errorf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "open") || !strings.Contains(lines[1], "/rec/b") {
		t.Errorf("unexpected second line: %s", lines[1])
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 15, 0, 0, time.Local)
	tests := []struct {
		event notify.Event
		want  string
	}{
		{notify.Event{Kind: notify.KindTargetDetected, Time: ts, Detected: true, Target: "Kiwoom.exe"}, "09:15:00  target detected: Kiwoom.exe"},
		{notify.Event{Kind: notify.KindTargetDetected, Time: ts}, "09:15:00  target gone"},
		{notify.Event{Kind: notify.KindRecordingStopped, Time: ts, Origin: "auto", OutputDir: "/r", Frames: 7}, "09:15:00  recording stopped (auto): /r, 7 frames"},
		{notify.Event{Kind: notify.KindRecordingDuration, Time: ts, ElapsedSeconds: 65, Frames: 65}, "09:15:00  recording 00:01:05, 65 frames"},
	}
	for _, tt := range tests {
		if got := formatEvent(tt.event); got != tt.want {
			t.Errorf("formatEvent() = %q, want %q", got, tt.want)
		}
	}
}

func TestRenderPreflight(t *testing.T) {
	out := renderPreflight(&preflight.Result{
		OK:      false,
		Message: "Preflight FAILED: Display :9 is not reachable",
		Issues:  []string{"connection refused"},
		Fixes:   []string{"Set capture.display explicitly"},
	})
	for _, want := range []string{"FAILED", "issue: ", "connection refused", "Set capture.display"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
