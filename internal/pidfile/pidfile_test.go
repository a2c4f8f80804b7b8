package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nested", "htswatch-core.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pf.Remove()

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("Failed to read PID file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file holds %q, want %d", got, os.Getpid())
	}
	if pf.Path() != pidPath {
		t.Errorf("Path() = %q", pf.Path())
	}
}

func TestAcquire_LiveOwner(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")

	// the parent of the test binary is alive for the whole run
	ppid := os.Getppid()
	if ppid <= 1 {
		t.Skip("no usable parent process")
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(ppid)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Acquire(pidPath)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if !strings.Contains(err.Error(), strconv.Itoa(ppid)) {
		t.Errorf("error should name the owner PID: %v", err)
	}
}

func TestAcquire_StaleFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(pidPath, []byte("999999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("stale PID file should be replaced: %v", err)
	}
	defer pf.Remove()

	if pid, _ := Read(pidPath); pid != os.Getpid() {
		t.Errorf("PID file holds %d, want %d", pid, os.Getpid())
	}
}

func TestAcquire_GarbageFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(pidPath, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatalf("garbage PID file should be overwritten: %v", err)
	}
	defer pf.Remove()
}

func TestRemove_OnlyOwnPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "test.pid")

	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath, []byte("12345\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Error("Remove deleted a file owned by another PID")
	}

	var nilPF *PIDFile
	if err := nilPF.Remove(); err != nil {
		t.Errorf("nil Remove: %v", err)
	}
}

func TestRunning(t *testing.T) {
	dir := t.TempDir()

	if _, ok := Running(filepath.Join(dir, "missing.pid")); ok {
		t.Error("missing file reported running")
	}

	pidPath := filepath.Join(dir, "test.pid")
	pf, err := Acquire(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	pid, ok := Running(pidPath)
	if !ok || pid != os.Getpid() {
		t.Errorf("Running = %d, %v", pid, ok)
	}

	if err := pf.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, ok := Running(pidPath); ok {
		t.Error("removed file reported running")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/trader")
	want := filepath.Join("/home/trader", ".cache", "htswatch", "htswatch-core.pid")
	if got := DefaultPath("htswatch-core"); got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}
