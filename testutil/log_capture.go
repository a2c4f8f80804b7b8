// Package testutil holds fakes shared by the package tests.
package testutil

import (
	"bytes"
	"strings"
	"sync"

	"github.com/tiroq/htswatch/internal/logging"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writers a daemon's
// goroutines produce.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// LogCapture is a logging.Loggers pair backed by in-memory buffers.
type LogCapture struct {
	out syncBuffer
	err syncBuffer

	Loggers *logging.Loggers
}

// NewLogCapture returns an empty capture.
func NewLogCapture() *LogCapture {
	lc := &LogCapture{}
	lc.Loggers = logging.New(&lc.out, &lc.err, "[test]")
	return lc
}

// Out returns everything written to the Out logger.
func (lc *LogCapture) Out() string { return lc.out.String() }

// Err returns everything written to the Err logger.
func (lc *LogCapture) Err() string { return lc.err.String() }

// Contains reports whether either stream contains substr.
func (lc *LogCapture) Contains(substr string) bool {
	return strings.Contains(lc.Out(), substr) || strings.Contains(lc.Err(), substr)
}

// ErrContains reports whether the Err stream contains substr.
func (lc *LogCapture) ErrContains(substr string) bool {
	return strings.Contains(lc.Err(), substr)
}

// CountOut returns how many times substr appears in the Out stream.
func (lc *LogCapture) CountOut(substr string) int {
	return strings.Count(lc.Out(), substr)
}
