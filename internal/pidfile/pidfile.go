// Package pidfile keeps a single htswatch-core per user.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tiroq/htswatch/internal/config"
)

// ErrAlreadyRunning is returned by Acquire when a live process owns the file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// PIDFile is a held lock file.
type PIDFile struct {
	path string
	pid  int
}

// DefaultPath returns ~/.cache/htswatch/<name>.pid.
func DefaultPath(name string) string {
	return filepath.Join(config.CacheDir(), name+".pid")
}

// Acquire writes the current PID to path. A file left by a dead process is
// replaced; one owned by a live process yields ErrAlreadyRunning.
func Acquire(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	if pid, err := Read(path); err == nil {
		if pid != os.Getpid() && alive(pid) {
			return nil, fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale PID file: %w", err)
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Remove deletes the file if it still holds our PID.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}
	pid, err := Read(p.path)
	if err != nil || pid != p.pid {
		return nil
	}
	return os.Remove(p.path)
}

// Read parses the PID stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}
	return pid, nil
}

// Running reports the PID of the live process owning path, if any.
func Running(path string) (int, bool) {
	pid, err := Read(path)
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}
