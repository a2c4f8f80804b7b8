package recorder

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/tiroq/htswatch/internal/capture"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/fileutil"
)

// runFrames writes one frame immediately and then one per tick until the
// session that launched it is stopped. Sequence numbers only advance on a
// successful write, so a failed tick retries the same number.
func (s *Session) runFrames(t frameTask) {
	defer s.tasks.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	seq := 1
	for {
		if !s.current(t.generation) {
			return
		}
		if s.writeFrame(t, seq) {
			seq++
		}

		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

// writeFrame captures and stores frame seq, reporting success. Failures of
// any kind, panics included, are logged and swallowed.
func (s *Session) writeFrame(t frameTask, seq int) (ok bool) {
	path := filepath.Join(t.dir, fileutil.FrameFileName(seq))

	defer func() {
		if r := recover(); r != nil {
			s.frameFailed(t, seq, fmt.Errorf("%w: panic: %v", capture.ErrCapture, r))
			ok = false
		}
	}()

	img, err := t.source.Capture()
	if err != nil {
		s.frameFailed(t, seq, err)
		return false
	}

	// Stopped while the grab was in flight: drop the frame.
	if !s.current(t.generation) {
		return false
	}

	err = fileutil.WriteAtomic(path, func(w io.Writer) error {
		return capture.EncodePNG(w, img)
	})
	if err != nil {
		s.frameFailed(t, seq, err)
		return false
	}

	s.mu.Lock()
	if s.active && s.generation == t.generation {
		s.frameCount++
	}
	s.mu.Unlock()

	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentFrameTask,
		Event:     diaglog.EventFrameWritten,
		SessionID: filepath.Base(t.dir),
		Fields:    map[string]any{"seq": seq},
	})
	return true
}

func (s *Session) frameFailed(t frameTask, seq int, err error) {
	s.logs.Err.Printf("Frame %d of %s failed (will retry next tick): %v", seq, filepath.Base(t.dir), err)
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentFrameTask,
		Event:     diaglog.EventFrameFailed,
		SessionID: filepath.Base(t.dir),
		Reason:    err.Error(),
		Fields:    map[string]any{"seq": seq},
	})
}
