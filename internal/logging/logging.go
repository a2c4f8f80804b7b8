// Package logging holds the out/err logger pair shared by the daemon's
// components. Both are plain *log.Logger values backed by append-only files
// that are rotated to ".old" once they grow past a size cap.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// DefaultMaxSize is the size at which a log file is rotated on open.
const DefaultMaxSize = 10 * 1024 * 1024

// Loggers pairs the informational and error streams.
type Loggers struct {
	Out *log.Logger
	Err *log.Logger

	closers []io.Closer
}

// New builds a Loggers pair over arbitrary writers.
func New(out, errw io.Writer, prefix string) *Loggers {
	return &Loggers{
		Out: log.New(out, prefix+" ", log.LstdFlags),
		Err: log.New(errw, prefix+" ERROR: ", log.LstdFlags),
	}
}

// Discard returns loggers that drop everything.
func Discard() *Loggers {
	return New(io.Discard, io.Discard, "")
}

// Open creates <dir>/<name>.out.log and <dir>/<name>.err.log, rotating either
// one first if it already exceeds DefaultMaxSize.
func Open(dir, name string) (*Loggers, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	outPath := filepath.Join(dir, name+".out.log")
	errPath := filepath.Join(dir, name+".err.log")

	if err := RotateIfNeeded(outPath, DefaultMaxSize); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}
	if err := RotateIfNeeded(errPath, DefaultMaxSize); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		_ = outFile.Close()
		return nil, err
	}

	l := New(outFile, errFile, "["+name+"]")
	l.closers = []io.Closer{outFile, errFile}
	return l, nil
}

// Close closes any files opened by Open. Safe on nil.
func (l *Loggers) Close() error {
	if l == nil {
		return nil
	}
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// OrDiscard returns l, or a discarding pair when l is nil.
func (l *Loggers) OrDiscard() *Loggers {
	if l == nil {
		return Discard()
	}
	return l
}

// RotateIfNeeded renames path to path+".old" when it is at least maxSize
// bytes, replacing any previous .old file.
func RotateIfNeeded(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxSize {
		return nil
	}

	oldPath := path + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}
	return os.Rename(path, oldPath)
}
