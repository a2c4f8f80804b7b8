package recorder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/capture"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/fileutil"
	"github.com/tiroq/htswatch/internal/logging"
)

// SourceFunc resolves the capture source for a new session. It is called
// once per Start, so a session keeps the source it began with.
type SourceFunc func() capture.Source

// Session is the single shared recording state. The orchestrator writes the
// active/dir/start fields through Start and Stop; the frame task only bumps
// the frame counter, and only while its own generation is still current.
type Session struct {
	sourceFn SourceFunc

	mu         sync.Mutex
	active     bool
	outputDir  string
	startedAt  time.Time
	frameCount int
	generation uint64
	stopCh     chan struct{}
	interval   time.Duration

	now   func() time.Time
	tasks sync.WaitGroup

	logs *logging.Loggers
	diag *diaglog.Logger
}

// NewSession returns an idle session.
func NewSession(sourceFn SourceFunc) *Session {
	return &Session{
		sourceFn: sourceFn,
		interval: DefaultFrameInterval,
		now:      time.Now,
		logs:     logging.Discard(),
		diag:     diaglog.NewNoOp(),
	}
}

// SetLoggers wires the out/err loggers.
func (s *Session) SetLoggers(l *logging.Loggers) {
	s.logs = l.OrDiscard()
}

// SetDiagLogger wires the NDJSON diagnostic log.
func (s *Session) SetDiagLogger(l *diaglog.Logger) {
	if l == nil {
		l = diaglog.NewNoOp()
	}
	s.diag = l
}

// SetClock replaces time.Now for start instants, names and elapsed time.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetFrameInterval sets the cadence for sessions started afterwards.
func (s *Session) SetFrameInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultFrameInterval
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// frameTask is everything a frame goroutine needs, captured at Start so it
// never re-reads session state that a later session may have replaced.
type frameTask struct {
	generation uint64
	dir        string
	stop       <-chan struct{}
	source     capture.Source
	interval   time.Duration
}

// Start creates <root>/recording_<YYYYMMDD_HHMMSS> (suffixed _2, _3, ... if
// taken), marks the session active with a zero frame count and launches the
// frame task. It returns the new directory.
func (s *Session) Start(root string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return "", ErrAlreadyActive
	}

	startedAt := s.now()
	dir, err := fileutil.MakeUniqueDir(root, fileutil.SessionDirName(startedAt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}

	s.generation++
	s.active = true
	s.outputDir = dir
	s.startedAt = startedAt
	s.frameCount = 0
	s.stopCh = make(chan struct{})

	task := frameTask{
		generation: s.generation,
		dir:        dir,
		stop:       s.stopCh,
		source:     s.sourceFn(),
		interval:   s.interval,
	}

	s.logs.Out.Printf("Recording started: %s (source: %s, every %v)", dir, task.source.Describe(), task.interval)
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStart,
		SessionID: filepath.Base(dir),
		Fields:    map[string]any{"source": task.source.Describe(), "interval_ms": task.interval.Milliseconds()},
	})

	s.tasks.Add(1)
	go s.runFrames(task)

	return dir, nil
}

// Stop clears the session and signals its frame task to exit. It does not
// wait for the task; a frame already being captured is discarded.
func (s *Session) Stop() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Summary{}, ErrNotActive
	}

	summary := Summary{
		OutputDir: s.outputDir,
		StartedAt: s.startedAt,
		StoppedAt: s.now(),
		Frames:    s.frameCount,
	}

	close(s.stopCh)
	s.active = false
	s.outputDir = ""
	s.startedAt = time.Time{}
	s.frameCount = 0
	s.stopCh = nil

	s.logs.Out.Printf("Recording stopped: %s (%d frames, %v)", summary.OutputDir, summary.Frames,
		summary.Duration().Round(time.Second))
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSession,
		Event:     diaglog.EventRecordingStop,
		SessionID: filepath.Base(summary.OutputDir),
		Fields:    map[string]any{"frames": summary.Frames, "duration_ms": summary.Duration().Milliseconds()},
	})

	return summary, nil
}

// Status never waits on the frame task.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Status{}
	}
	return Status{
		Active:     true,
		OutputDir:  s.outputDir,
		StartedAt:  s.startedAt,
		Elapsed:    s.now().Sub(s.startedAt),
		FrameCount: s.frameCount,
	}
}

// IsActive reports whether a session is running.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until every frame task started so far has returned, or ctx
// is done.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) current(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.generation == generation
}
