// Package preflight runs the startup health checks shared by htswatch-core
// and `htswatch-ctl doctor`.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tiroq/htswatch/internal/capture"
	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/detector"
	"github.com/tiroq/htswatch/internal/recorder"
)

// Result is the outcome of one or more checks.
type Result struct {
	OK       bool
	Message  string
	Issues   []string
	Warnings []string
	Fixes    []string
}

// Pinger is the capture backend the display check pings, usually from
// capture.Probe.
type Pinger = capture.Pinger

// CheckOutputDir verifies that sessions can be created under dir.
func CheckOutputDir(dir string) *Result {
	result := &Result{OK: true}

	if strings.TrimSpace(dir) == "" {
		result.OK = false
		result.Message = "No output directory configured"
		result.Issues = append(result.Issues, "output_dir is empty")
		result.Fixes = append(result.Fixes, "Set output_dir in config.json, e.g. \"./recordings\"")
		return result
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.OK = false
		result.Message = fmt.Sprintf("Output directory %s cannot be created", dir)
		result.Issues = append(result.Issues, err.Error())
		result.Fixes = append(result.Fixes, "Choose an output_dir on a writable volume")
		return result
	}

	probe, err := os.CreateTemp(dir, ".htswatch-probe-*")
	if err != nil {
		result.OK = false
		result.Message = fmt.Sprintf("Output directory %s is not writable", dir)
		result.Issues = append(result.Issues, err.Error())
		result.Fixes = append(result.Fixes, fmt.Sprintf("Check permissions: ls -ld %s", dir))
		return result
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	result.Message = fmt.Sprintf("Output directory %s is writable", abs)
	return result
}

// CheckDisplay verifies the display used for capture answers.
func CheckDisplay(d Pinger) *Result {
	result := &Result{OK: true}

	name := d.Name()
	if name == "" {
		name = "$DISPLAY"
	}

	if err := d.Ping(); err != nil {
		result.OK = false
		result.Message = fmt.Sprintf("Display %s is not reachable", name)
		result.Issues = append(result.Issues, err.Error())
		result.Fixes = append(result.Fixes, SuggestedFixes(err)...)
		return result
	}

	result.Message = fmt.Sprintf("Display %s is reachable", name)
	return result
}

// CheckTargets warns about a target spec that can never match.
func CheckTargets(spec config.TargetSpec) *Result {
	result := &Result{OK: true}

	names := nonBlank(spec.ProcessNames)
	if len(names) == 0 {
		result.OK = false
		result.Message = "No target process names configured"
		result.Issues = append(result.Issues, "hts.process_names is empty")
		result.Fixes = append(result.Fixes, "Add at least one process name, e.g. \"kiwoom.exe\"")
		return result
	}
	if len(names) < len(spec.ProcessNames) {
		result.Warnings = append(result.Warnings, "Blank entries in hts.process_names are ignored")
	}

	result.Message = fmt.Sprintf("Watching %d process name(s)", len(names))
	return result
}

// CheckWindowSource fails when window capture is configured without titles
// or on a platform without an X server.
func CheckWindowSource(cfg config.CaptureConfig, spec config.TargetSpec) *Result {
	return checkWindowSource(cfg, spec, capture.WindowCaptureSupported)
}

func checkWindowSource(cfg config.CaptureConfig, spec config.TargetSpec, windowCapture bool) *Result {
	result := &Result{OK: true}

	if cfg.Source != config.SourceWindow {
		result.Message = fmt.Sprintf("Capture source: %s", cfg.Source)
		return result
	}
	if !windowCapture {
		result.OK = false
		result.Message = "Window capture is not available on this platform"
		result.Issues = append(result.Issues, fmt.Sprintf("capture.source %q needs an X11 display", cfg.Source))
		result.Fixes = append(result.Fixes, "Set capture.source to \"screen\" to record the primary display")
		return result
	}
	if len(nonBlank(spec.WindowTitles)) == 0 {
		result.OK = false
		result.Message = "Window capture has no titles to match"
		result.Issues = append(result.Issues, "hts.window_titles is empty")
		result.Fixes = append(result.Fixes, "Add a window title substring or set capture.source to \"screen\"")
		return result
	}
	result.Message = fmt.Sprintf("Capture source: window matching %s", strings.Join(spec.WindowTitles, ", "))
	return result
}

// Run performs every check for cfg and folds them into one result.
func Run(cfg *config.Config, display Pinger) *Result {
	checks := []*Result{
		CheckTargets(cfg.Target),
		CheckOutputDir(cfg.OutputDir),
		CheckWindowSource(cfg.Capture, cfg.Target),
	}
	if display != nil {
		checks = append(checks, CheckDisplay(display))
	}
	return Combine(checks...)
}

// Combine merges results; any failure fails the whole.
func Combine(checks ...*Result) *Result {
	result := &Result{OK: true}
	var messages []string

	for _, c := range checks {
		if !c.OK {
			result.OK = false
		}
		result.Issues = append(result.Issues, c.Issues...)
		result.Warnings = append(result.Warnings, c.Warnings...)
		result.Fixes = append(result.Fixes, c.Fixes...)
		messages = append(messages, c.Message)
	}

	result.Message = strings.Join(messages, " | ")
	if result.OK {
		result.Message = "Preflight passed: " + result.Message
	} else {
		result.Message = "Preflight FAILED: " + result.Message
	}
	return result
}

// SuggestedFixes returns troubleshooting steps for errors the daemon reports.
func SuggestedFixes(err error) []string {
	return suggestedFixes(err, capture.WindowCaptureSupported)
}

func suggestedFixes(err error, x11 bool) []string {
	switch {
	case errors.Is(err, capture.ErrWindowNotFound):
		return []string{
			"No window title matched hts.window_titles",
			"  1. Run `htswatch-ctl windows` to list capturable windows",
			"  2. Add a substring of the HTS window title to hts.window_titles",
		}
	case !x11 && (errors.Is(err, capture.ErrEnumeration) || errors.Is(err, capture.ErrCapture)):
		return []string{
			"The primary display could not be captured",
			"  On macOS grant Screen Recording permission to htswatch-core",
			"  On Windows run htswatch-core in the logged-in user's session, not as a service",
		}
	case errors.Is(err, capture.ErrEnumeration), errors.Is(err, capture.ErrCapture):
		return []string{
			"Cannot talk to the X server",
			"  1. Check that DISPLAY is set for the daemon's environment",
			"  2. Set capture.display explicitly, e.g. \":0\"",
			"  3. Allow local clients: xhost +SI:localuser:$USER",
		}
	case errors.Is(err, detector.ErrEnumeration):
		return []string{
			"The process table could not be read",
			"  On Linux check that /proc is mounted and readable",
		}
	case errors.Is(err, recorder.ErrIO):
		return []string{
			"Recording directory could not be created",
			"  Run `htswatch-ctl doctor` and check output_dir permissions",
		}
	case err != nil:
		return []string{fmt.Sprintf("Error: %s", err)}
	}
	return nil
}

func nonBlank(items []string) []string {
	var out []string
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
