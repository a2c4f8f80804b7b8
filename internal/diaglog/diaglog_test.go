package diaglog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesNDJSON(t *testing.T) {
	t.Setenv(EnvDebug, "true")

	path := filepath.Join(t.TempDir(), "debug.ndjson")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries := []LogEntry{
		{Component: ComponentDetector, Event: EventTargetDetected, Fields: map[string]any{"name": "Kiwoom.exe"}},
		{Component: ComponentSession, Event: EventRecordingStart, SessionID: "recording_20260101_090000", Reason: "auto"},
		{Component: ComponentFrameTask, Event: EventFrameFailed, Reason: "capture failed"},
	}
	for _, e := range entries {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != len(entries) {
		t.Fatalf("want %d lines, got %d", len(entries), len(lines))
	}
	if lines[0]["component"] != ComponentDetector {
		t.Errorf("component = %v", lines[0]["component"])
	}
	if fields, ok := lines[0]["fields"].(map[string]any); !ok || fields["name"] != "Kiwoom.exe" {
		t.Errorf("fields = %v", lines[0]["fields"])
	}
	if lines[1]["session_id"] != "recording_20260101_090000" {
		t.Errorf("session_id = %v", lines[1]["session_id"])
	}
	if lines[2]["ts"] == nil {
		t.Error("ts missing")
	}
}

func TestRollingMovesFileAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roll.ndjson")
	const maxSize = 1024
	rw, err := newRollingWriter(path, maxSize)
	if err != nil {
		t.Fatalf("newRollingWriter: %v", err)
	}
	defer rw.close()

	chunk := []byte(strings.Repeat("x", 511) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("current size = %d, want %d", info.Size(), len(chunk))
	}
	old, err := os.Stat(path + ".old")
	if err != nil {
		t.Fatalf("stat .old: %v", err)
	}
	if old.Size() != 2*int64(len(chunk)) {
		t.Errorf(".old size = %d, want %d", old.Size(), 2*len(chunk))
	}
}

func TestNoOpWhenDisabled(t *testing.T) {
	t.Setenv(EnvDebug, "")

	path := filepath.Join(t.TempDir(), "noop.ndjson")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Enabled() {
		t.Fatal("logger should be disabled")
	}
	l.Log(LogEntry{Component: ComponentMonitor, Event: EventTargetLost})
	_ = l.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("log file should not exist when debug is disabled")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log(LogEntry{Component: ComponentMonitor, Event: EventTargetLost})
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := Path(); got != defaultPath {
		t.Errorf("Path() = %q, want %q", got, defaultPath)
	}
	t.Setenv(EnvPath, "/var/tmp/x.log")
	if got := Path(); got != "/var/tmp/x.log" {
		t.Errorf("Path() = %q", got)
	}
}
