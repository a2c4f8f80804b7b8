// Package detector reports whether the configured target application is
// currently running on this host.
package detector

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/logging"
)

// ErrEnumeration marks a failure to read the OS process table.
var ErrEnumeration = errors.New("process enumeration failed")

// DetectionResult is a single poll snapshot. The zero value is NotFound.
type DetectionResult struct {
	Found       bool      `json:"found"`
	Name        string    `json:"name,omitempty"` // matched process name, original case
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// NotFound returns a negative result.
func NotFound() DetectionResult {
	return DetectionResult{EvaluatedAt: time.Now()}
}

// Found returns a positive result for name.
func Found(name string) DetectionResult {
	return DetectionResult{Found: true, Name: name, EvaluatedAt: time.Now()}
}

// Process is one entry of the OS process table.
type Process struct {
	PID  int
	Name string
}

// Lister enumerates running processes. Implementations must take a fresh
// snapshot on every call.
type Lister interface {
	Processes() ([]Process, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func() ([]Process, error)

// Processes calls f.
func (f ListerFunc) Processes() ([]Process, error) { return f() }

// Detector is the interface the orchestrator polls.
type Detector interface {
	IsTargetRunning() DetectionResult
}

// ProcessDetector matches the process table against a TargetSpec.
type ProcessDetector struct {
	lister Lister

	mu       sync.RWMutex
	patterns []string // lowercased process name substrings

	logs *logging.Loggers
	diag *diaglog.Logger
}

// New creates a detector over lister for spec. A nil lister uses the
// platform process table.
func New(lister Lister, spec config.TargetSpec) *ProcessDetector {
	if lister == nil {
		lister = NewSystemLister()
	}
	d := &ProcessDetector{
		lister: lister,
		logs:   logging.Discard(),
		diag:   diaglog.NewNoOp(),
	}
	d.SetTarget(spec)
	return d
}

// SetLoggers wires the out/err loggers.
func (d *ProcessDetector) SetLoggers(l *logging.Loggers) {
	d.logs = l.OrDiscard()
}

// SetDiagLogger wires the NDJSON diagnostic log.
func (d *ProcessDetector) SetDiagLogger(l *diaglog.Logger) {
	if l == nil {
		l = diaglog.NewNoOp()
	}
	d.diag = l
}

// SetTarget replaces the process name patterns used by subsequent polls.
func (d *ProcessDetector) SetTarget(spec config.TargetSpec) {
	patterns := make([]string, 0, len(spec.ProcessNames))
	for _, name := range spec.ProcessNames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			patterns = append(patterns, name)
		}
	}

	d.mu.Lock()
	d.patterns = patterns
	d.mu.Unlock()
}

// IsTargetRunning takes a fresh process snapshot and returns the first
// process, in ascending PID order, whose lowercased name contains any
// target pattern. Enumeration failures are logged and reported as NotFound.
func (d *ProcessDetector) IsTargetRunning() DetectionResult {
	d.mu.RLock()
	patterns := d.patterns
	d.mu.RUnlock()

	if len(patterns) == 0 {
		return NotFound()
	}

	procs, err := d.lister.Processes()
	if err != nil {
		d.logs.Err.Printf("Process enumeration failed (treating as not running): %v", err)
		d.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentDetector,
			Event:     diaglog.EventEnumerationFailed,
			Reason:    err.Error(),
		})
		return NotFound()
	}

	if name, ok := Match(procs, patterns); ok {
		return Found(name)
	}
	return NotFound()
}

// Match scans procs in PID order and returns the original-case name of the
// first one whose lowercased name contains a lowercased pattern.
func Match(procs []Process, patterns []string) (string, bool) {
	sorted := make([]Process, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PID < sorted[j].PID })

	for _, p := range sorted {
		lower := strings.ToLower(p.Name)
		if lower == "" {
			continue
		}
		for _, pattern := range patterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				return p.Name, true
			}
		}
	}
	return "", false
}
