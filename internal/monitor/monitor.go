// Package monitor runs the orchestrator loop: poll the detector, feed the
// state machine, start or stop the capture session on edges and push events
// to the shell.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/detector"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/logging"
	"github.com/tiroq/htswatch/internal/notify"
	"github.com/tiroq/htswatch/internal/recorder"
	"github.com/tiroq/htswatch/internal/statemachine"
)

// DefaultInterval is the poll cadence when no interval func is set.
const DefaultInterval = time.Second

// noTargetLogEvery throttles the periodic "no target" line.
const noTargetLogEvery = 60

// Recorder is the session control the loop drives. The application context
// implements it on top of recorder.Session so that history and sidecars are
// handled in one place for both automatic and manual starts.
type Recorder interface {
	StartSession(origin recorder.Origin, target string) (string, error)
	StopSession(origin recorder.Origin) (recorder.Summary, error)
	Status() recorder.Status
}

// TickReport describes one loop iteration.
type TickReport struct {
	Result     detector.DetectionResult
	Transition statemachine.Transition
	Status     recorder.Status
	Err        error // start/stop failure, already logged
}

// Monitor owns no state of its own beyond the last poll; the state machine
// and the session are shared with the application context.
type Monitor struct {
	det  detector.Detector
	sm   *statemachine.StateMachine
	rec  Recorder
	sink notify.Sink

	interval func() time.Duration
	onTick   func(TickReport)

	logs *logging.Loggers
	diag *diaglog.Logger

	mu          sync.Mutex
	last        detector.DetectionResult
	noTargetRun int
}

// New wires a monitor. A nil sink discards events.
func New(det detector.Detector, sm *statemachine.StateMachine, rec Recorder, sink notify.Sink) *Monitor {
	if sink == nil {
		sink = notify.Nop
	}
	return &Monitor{
		det:      det,
		sm:       sm,
		rec:      rec,
		sink:     sink,
		interval: func() time.Duration { return DefaultInterval },
		logs:     logging.Discard(),
		diag:     diaglog.NewNoOp(),
	}
}

// SetInterval sets the cadence source. It is consulted before every wait,
// so a config change applies from the next tick.
func (m *Monitor) SetInterval(fn func() time.Duration) {
	if fn != nil {
		m.interval = fn
	}
}

// SetLoggers wires the out/err loggers.
func (m *Monitor) SetLoggers(l *logging.Loggers) {
	m.logs = l.OrDiscard()
}

// SetDiagLogger wires the NDJSON diagnostic log.
func (m *Monitor) SetDiagLogger(l *diaglog.Logger) {
	if l == nil {
		l = diaglog.NewNoOp()
	}
	m.diag = l
}

// OnTick registers a callback run after every tick, from the loop goroutine.
func (m *Monitor) OnTick(fn func(TickReport)) {
	m.onTick = fn
}

// LastResult returns the most recent poll result.
func (m *Monitor) LastResult() detector.DetectionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Tick runs one poll and its side effects.
func (m *Monitor) Tick() TickReport {
	result := m.det.IsTargetRunning()
	m.remember(result)

	report := TickReport{Result: result}
	report.Transition = m.sm.Observe(result)

	switch report.Transition {
	case statemachine.Started:
		report.Err = m.onStarted(result)
	case statemachine.Stopped:
		report.Err = m.onStopped()
	default:
		if st := m.rec.Status(); st.Active {
			secs, _ := st.ElapsedSeconds()
			m.sink.Emit(notify.RecordingDuration(secs, st.FrameCount))
		}
	}

	report.Status = m.rec.Status()
	return report
}

func (m *Monitor) remember(result detector.DetectionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = result

	if result.Found {
		m.noTargetRun = 0
		return
	}
	m.noTargetRun++
	if m.noTargetRun%noTargetLogEvery == 1 {
		m.logs.Out.Printf("Detection: no target running (%s mode)", m.sm.Mode())
	}
}

func (m *Monitor) onStarted(result detector.DetectionResult) error {
	m.logs.Out.Printf("Detection: target appeared: %s", result.Name)
	m.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentMonitor,
		Event:     diaglog.EventTargetDetected,
		Fields:    map[string]any{"target": result.Name},
	})
	m.sink.Emit(notify.TargetDetected(true, result.Name))

	dir, err := m.rec.StartSession(recorder.OriginAuto, result.Name)
	switch {
	case err == nil:
		m.sink.Emit(notify.RecordingStarted(dir, string(recorder.OriginAuto)))
		return nil
	case errors.Is(err, recorder.ErrAlreadyActive):
		st := m.rec.Status()
		m.logs.Out.Printf("Recording already active (%s), keeping it", st.OutputDir)
		m.sink.Emit(notify.RecordingStarted(st.OutputDir, string(recorder.OriginAuto)))
		return nil
	default:
		m.logs.Err.Printf("Failed to start recording for %s: %v", result.Name, err)
		return err
	}
}

func (m *Monitor) onStopped() error {
	m.logs.Out.Printf("Detection: target gone")
	m.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentMonitor,
		Event:     diaglog.EventTargetLost,
	})
	m.sink.Emit(notify.TargetDetected(false, ""))

	summary, err := m.rec.StopSession(recorder.OriginAuto)
	switch {
	case err == nil:
		m.sink.Emit(notify.RecordingStopped(summary.OutputDir, string(recorder.OriginAuto), summary.Frames))
		return nil
	case errors.Is(err, recorder.ErrNotActive):
		m.logs.Out.Printf("Target gone but no recording was active")
		return nil
	default:
		m.logs.Err.Printf("Failed to stop recording: %v", err)
		return err
	}
}

// Run ticks until ctx is done. The first tick runs immediately.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report, err := m.safeTick()
		if err != nil {
			m.logs.Err.Printf("Monitor tick failed: %v", err)
		} else if m.onTick != nil {
			m.onTick(report)
		}

		timer.Reset(m.nextInterval())
	}
}

func (m *Monitor) nextInterval() time.Duration {
	d := m.interval()
	if d <= 0 {
		return DefaultInterval
	}
	return d
}

func (m *Monitor) safeTick() (report TickReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Tick(), nil
}
