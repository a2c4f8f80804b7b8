package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Version is set from main at link time.
var Version = "dev"

// Bundle is the header line of an exported diagnostic file.
type Bundle struct {
	ExportedAt      string `json:"exported_at"`
	HTSWatchVersion string `json:"htswatch_version"`
	GoVersion       string `json:"go_version"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	LogFile         string `json:"log_file"`
	EntryCount      int    `json:"entry_count"`
	Skipped         int    `json:"skipped,omitempty"` // lines that were not valid JSON
}

// Export copies every valid NDJSON line of logPath into
// dest/htswatch-diag-<ts>.ndjson behind a Bundle header. It returns the
// written path and the number of entries copied.
func Export(logPath, dest string) (string, int, error) {
	src, err := os.Open(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("diagnostic log not found at %s: %w", logPath, os.ErrNotExist)
		}
		return "", 0, fmt.Errorf("diagnostic log unreadable: %w", err)
	}
	defer func() { _ = src.Close() }()

	var (
		lines   [][]byte
		skipped int
	)
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), defaultMaxSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if !json.Valid(raw) {
			skipped++
			continue
		}
		lines = append(lines, append([]byte(nil), raw...))
	}
	if err := scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("diagnostic log unreadable: %w", err)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", 0, fmt.Errorf("create export dir: %w", err)
	}
	outPath := filepath.Join(dest, "htswatch-diag-"+time.Now().UTC().Format("20060102T150405")+".ndjson")
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	if err := enc.Encode(Bundle{
		ExportedAt:      time.Now().UTC().Format(time.RFC3339),
		HTSWatchVersion: Version,
		GoVersion:       runtime.Version(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		LogFile:         logPath,
		EntryCount:      len(lines),
		Skipped:         skipped,
	}); err != nil {
		return "", 0, err
	}
	for _, line := range lines {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return outPath, len(lines), nil
}
