//go:build linux

package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procLister scans /proc.
type procLister struct {
	root string
}

// NewSystemLister returns the Linux process table.
func NewSystemLister() Lister {
	return &procLister{root: "/proc"}
}

// Processes reads every numeric entry under /proc. Processes that exit
// mid-scan are skipped.
func (l *procLister) Processes() ([]Process, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	procs := make([]Process, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		name, ok := l.processName(pid)
		if !ok {
			continue
		}
		procs = append(procs, Process{PID: pid, Name: name})
	}
	return procs, nil
}

// processName prefers the executable basename from cmdline (wine reports
// the full "C:\...\Kiwoom.exe" path there) and falls back to the comm field
// of /proc/<pid>/stat, which the kernel truncates to 15 bytes.
func (l *procLister) processName(pid int) (string, bool) {
	dir := filepath.Join(l.root, strconv.Itoa(pid))

	if data, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		if name := cmdlineName(data); name != "" {
			return name, true
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return "", false
	}
	name := statName(string(data))
	return name, name != ""
}

// statName extracts the parenthesised comm field from a /proc stat line.
func statName(stat string) string {
	start := strings.Index(stat, "(")
	end := strings.LastIndex(stat, ")")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return stat[start+1 : end]
}

// cmdlineName returns the basename of argv[0], treating both / and \ as
// separators.
func cmdlineName(cmdline []byte) string {
	argv0 := string(cmdline)
	if i := strings.IndexByte(argv0, 0); i >= 0 {
		argv0 = argv0[:i]
	}
	argv0 = strings.TrimSpace(argv0)
	if argv0 == "" {
		return ""
	}
	if i := strings.LastIndexAny(argv0, `/\`); i >= 0 {
		argv0 = argv0[i+1:]
	}
	return argv0
}
