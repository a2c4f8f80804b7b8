// Package app is the htswatch application context. It owns the detector,
// the state machine, the capture session and the orchestrator loop, and
// exposes the operations the shell can invoke.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/capture"
	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/detector"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/fileutil"
	"github.com/tiroq/htswatch/internal/history"
	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/logging"
	"github.com/tiroq/htswatch/internal/monitor"
	"github.com/tiroq/htswatch/internal/notify"
	"github.com/tiroq/htswatch/internal/recorder"
	"github.com/tiroq/htswatch/internal/statemachine"
)

// SourceFactory builds the capture source for cfg. Tests use it to replace
// the X11 sources.
type SourceFactory func(cfg config.Config) capture.Source

// Options configures New. Only Store is required.
type Options struct {
	Store   *config.Store
	Lister  detector.Lister // nil uses the OS process table
	Sources SourceFactory   // nil uses the X display from the config
	Channel *ipc.Channel    // nil disables status and command files
	History *history.Store  // nil disables the session ledger
	Sink    notify.Sink     // extra event sink, e.g. for tests
	Loggers *logging.Loggers
	Diag    *diaglog.Logger
	Clock   func() time.Time
}

// Status is the get_status answer.
type Status struct {
	IsRecording    bool   `json:"is_recording"`
	TargetDetected bool   `json:"target_detected"`
	TargetName     string `json:"target_name,omitempty"`
	ElapsedSeconds *int64 `json:"elapsed_seconds,omitempty"`
}

// current describes the running session beyond what recorder.Session keeps.
type current struct {
	origin    recorder.Origin
	target    string
	source    string
	interval  time.Duration
	historyID uint
}

// App is safe for concurrent use by the loop, the command watcher and
// direct callers.
type App struct {
	store   *config.Store
	det     *detector.ProcessDetector
	sm      *statemachine.StateMachine
	session *recorder.Session
	mon     *monitor.Monitor
	hub     *notify.Hub
	sink    notify.Sink
	channel *ipc.Channel
	history *history.Store
	sources SourceFactory
	now     func() time.Time

	logs *logging.Loggers
	diag *diaglog.Logger

	displayMu sync.Mutex
	display   *capture.Display
	retired   []*capture.Display // replaced while a session still held them

	ctlMu sync.Mutex // serialises session start/stop
	cur   current

	statusMu   sync.Mutex
	lastAction string
	lastError  string

	quitOnce sync.Once
	quit     chan struct{}
}

// New wires an application context from opts. Nothing runs until Run.
func New(opts Options) *App {
	logs := opts.Loggers.OrDiscard()
	diag := opts.Diag
	if diag == nil {
		diag = diaglog.NewNoOp()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	cfg := opts.Store.Get()

	a := &App{
		store:   opts.Store,
		sm:      statemachine.New(),
		hub:     notify.NewHub(),
		channel: opts.Channel,
		history: opts.History,
		sources: opts.Sources,
		now:     now,
		logs:    logs,
		diag:    diag,
		display: capture.NewDisplay(cfg.Capture.Display),
		quit:    make(chan struct{}),
	}

	a.det = detector.New(opts.Lister, cfg.Target)
	a.det.SetLoggers(logs)
	a.det.SetDiagLogger(diag)

	a.session = recorder.NewSession(a.newSource)
	a.session.SetLoggers(logs)
	a.session.SetDiagLogger(diag)
	a.session.SetClock(now)

	a.hub.SetLoggers(logs)
	a.hub.SetDiagLogger(diag)

	desktop := notify.NewDesktop(logs)
	a.sink = notify.Multi{
		notify.NewLogSink(logs),
		a.hub,
		notify.SinkFunc(func(e notify.Event) {
			if a.store.Get().Notifications.Desktop {
				desktop.Emit(e)
			}
		}),
		opts.Sink,
	}

	a.mon = monitor.New(a.det, a.sm, a, a.sink)
	a.mon.SetLoggers(logs)
	a.mon.SetDiagLogger(diag)
	a.mon.SetInterval(a.store.PollInterval)
	a.mon.OnTick(a.afterTick)

	return a
}

// Monitor returns the orchestrator loop.
func (a *App) Monitor() *monitor.Monitor { return a.mon }

// StateMachine returns the shared state machine.
func (a *App) StateMachine() *statemachine.StateMachine { return a.sm }

// Session returns the capture session.
func (a *App) Session() *recorder.Session { return a.session }

// Hub returns the websocket event hub.
func (a *App) Hub() *notify.Hub { return a.hub }

func (a *App) newSource() capture.Source {
	return a.sourceFor(a.store.Get())
}

func (a *App) sourceFor(cfg config.Config) capture.Source {
	if a.sources != nil {
		return a.sources(cfg)
	}
	return capture.NewSource(a.currentDisplay(), cfg.Capture, cfg.Target.WindowTitles)
}

func (a *App) currentDisplay() *capture.Display {
	a.displayMu.Lock()
	defer a.displayMu.Unlock()
	return a.display
}

// Display returns the X display capture uses.
func (a *App) Display() *capture.Display { return a.currentDisplay() }

// StartSession starts a recording under the configured output root. It is
// the single entry point for automatic and manual starts.
func (a *App) StartSession(origin recorder.Origin, target string) (string, error) {
	a.ctlMu.Lock()
	defer a.ctlMu.Unlock()

	cfg := a.store.Get()
	interval := a.store.FrameInterval()
	a.session.SetFrameInterval(interval)

	dir, err := a.session.Start(cfg.OutputDir)
	if err != nil {
		return "", err
	}

	startedAt := a.session.Status().StartedAt
	a.cur = current{
		origin:   origin,
		target:   target,
		source:   cfg.Capture.Source,
		interval: interval,
	}

	if a.history != nil {
		rec := &history.SessionRecord{
			Directory:   dir,
			Target:      target,
			StartOrigin: string(origin),
			Source:      cfg.Capture.Source,
			StartedAt:   startedAt,
		}
		if err := a.history.Begin(rec); err != nil {
			a.logs.Err.Printf("Failed to record session start in history: %v", err)
		} else {
			a.cur.historyID = rec.ID
		}
	}
	return dir, nil
}

// StopSession stops the running recording, writes its session.json sidecar
// and closes its history row.
func (a *App) StopSession(origin recorder.Origin) (recorder.Summary, error) {
	a.ctlMu.Lock()
	defer a.ctlMu.Unlock()

	summary, err := a.session.Stop()
	if err != nil {
		return summary, err
	}
	cur := a.cur
	a.cur = current{}
	a.closeRetired()

	meta := &fileutil.SessionMetadata{
		Version:         diaglog.Version,
		Directory:       filepath.Base(summary.OutputDir),
		StartedAt:       summary.StartedAt,
		StoppedAt:       summary.StoppedAt,
		Duration:        summary.Duration().Round(time.Second).String(),
		DurationMs:      summary.Duration().Milliseconds(),
		Target:          cur.target,
		StartOrigin:     string(cur.origin),
		StopOrigin:      string(origin),
		Source:          cur.source,
		FrameIntervalMs: int(cur.interval / time.Millisecond),
		FrameCount:      summary.Frames,
	}
	if err := fileutil.WriteSessionMetadata(summary.OutputDir, meta); err != nil {
		a.logs.Err.Printf("Failed to write session metadata for %s: %v", summary.OutputDir, err)
	}

	if a.history != nil && cur.historyID != 0 {
		if err := a.history.Finish(cur.historyID, summary.StoppedAt, summary.Frames, string(origin)); err != nil {
			a.logs.Err.Printf("Failed to record session stop in history: %v", err)
		}
	}
	return summary, nil
}

// Status reports the capture session.
func (a *App) Status() recorder.Status {
	return a.session.Status()
}

// StartMonitoring starts a session on request from the shell.
func (a *App) StartMonitoring() (string, error) {
	target := a.mon.LastResult().Name
	dir, err := a.StartSession(recorder.OriginManual, target)
	if err != nil {
		return "", err
	}
	a.sink.Emit(notify.RecordingStarted(dir, string(recorder.OriginManual)))
	return dir, nil
}

// StopMonitoring stops the running session on request from the shell and
// returns its directory.
func (a *App) StopMonitoring() (string, error) {
	summary, err := a.StopSession(recorder.OriginManual)
	if err != nil {
		return "", err
	}
	a.sink.Emit(notify.RecordingStopped(summary.OutputDir, string(recorder.OriginManual), summary.Frames))
	return summary.OutputDir, nil
}

// GetStatus polls the detector afresh and combines it with the session.
func (a *App) GetStatus() Status {
	result := a.det.IsTargetRunning()
	st := a.session.Status()

	status := Status{
		IsRecording:    st.Active,
		TargetDetected: result.Found,
		TargetName:     result.Name,
	}
	if secs, ok := st.ElapsedSeconds(); ok {
		status.ElapsedSeconds = &secs
	}
	return status
}

// CaptureScreenshot writes one PNG into dir, or into the output root when
// dir is empty.
func (a *App) CaptureScreenshot(dir string) (string, error) {
	cfg := a.store.Get()
	if dir == "" {
		dir = cfg.OutputDir
	}
	path, err := capture.CaptureOnce(a.sourceFor(cfg), dir, a.now())
	if err != nil {
		return "", err
	}
	a.logs.Out.Printf("Screenshot saved: %s", path)
	return path, nil
}

// ListWindows returns "<title> (<w>x<h>)" for every top-level window.
func (a *App) ListWindows() ([]string, error) {
	if !capture.WindowCaptureSupported {
		return nil, capture.ErrNoWindowSystem
	}
	windows, err := a.currentDisplay().Windows()
	if err != nil {
		return nil, err
	}
	return capture.FormatWindows(windows), nil
}

// Config returns the live configuration.
func (a *App) Config() config.Config {
	return a.store.Get()
}

// UpdateConfig replaces the configuration as a whole. The detector uses the
// new target from its next poll; cadence and capture settings apply to the
// next tick and the next session.
func (a *App) UpdateConfig(cfg config.Config) {
	old := a.store.Get()
	a.store.Replace(cfg)
	a.det.SetTarget(cfg.Target)

	if cfg.Capture.Display != old.Capture.Display {
		a.swapDisplay(capture.NewDisplay(cfg.Capture.Display))
	}

	a.logs.Out.Printf("Configuration replaced (%d process names, output %s)",
		len(cfg.Target.ProcessNames), cfg.OutputDir)
	a.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentHTSWatchCore,
		Event:     diaglog.EventConfigReplaced,
		Fields: map[string]any{
			"process_names":     cfg.Target.ProcessNames,
			"check_interval_ms": cfg.Target.CheckIntervalMs,
			"output_dir":        cfg.OutputDir,
			"capture_source":    cfg.Capture.Source,
		},
	})
}

// ReloadConfig re-reads the config file and applies it. An invalid file
// leaves the live configuration untouched.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load(a.store.Path())
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	a.UpdateConfig(*cfg)
	return nil
}

// swapDisplay installs d. The previous display is closed now, or when the
// running session stops if that session's source still uses it.
func (a *App) swapDisplay(d *capture.Display) {
	a.ctlMu.Lock()
	defer a.ctlMu.Unlock()

	a.displayMu.Lock()
	prev := a.display
	a.display = d
	if a.session.IsActive() {
		a.retired = append(a.retired, prev)
		prev = nil
	}
	a.displayMu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// closeRetired waits for the stopped session's frame task, which may be
// mid-grab on a retired display, then closes the retired displays. The
// caller holds ctlMu.
func (a *App) closeRetired() {
	a.displayMu.Lock()
	retired := a.retired
	a.retired = nil
	a.displayMu.Unlock()
	if len(retired) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := a.session.Wait(ctx); err != nil {
		a.logs.Err.Printf("Frame task still running after %v, closing old display anyway", ShutdownGrace)
	}
	for _, d := range retired {
		d.Close()
	}
}

// Close releases the display connections.
func (a *App) Close() {
	a.displayMu.Lock()
	displays := append([]*capture.Display{a.display}, a.retired...)
	a.retired = nil
	a.displayMu.Unlock()

	for _, d := range displays {
		d.Close()
	}
}

func (a *App) setAction(action string, err error) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.lastAction = action
	if err != nil {
		a.lastError = err.Error()
	} else {
		a.lastError = ""
	}
}

// isBenign reports start/stop refusals that are not worth an error line.
func isBenign(err error) bool {
	return errors.Is(err, recorder.ErrAlreadyActive) || errors.Is(err, recorder.ErrNotActive)
}
