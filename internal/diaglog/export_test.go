package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func seedLogFile(t *testing.T, n int, garbage bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.ndjson")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create seed: %v", err)
	}
	defer func() { _ = f.Close() }()
	for i := 0; i < n; i++ {
		_, _ = fmt.Fprintf(f, "{\"ts\":\"2026-01-01T00:00:00Z\",\"component\":\"monitor\",\"event\":\"e%d\"}\n", i)
	}
	if garbage {
		_, _ = fmt.Fprintln(f, "{truncated")
	}
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines
}

func TestExportWritesBundleHeader(t *testing.T) {
	src := seedLogFile(t, 10, true)

	path, n, err := Export(src, filepath.Join(t.TempDir(), "nested"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 10 {
		t.Errorf("entries = %d, want 10", n)
	}

	lines := readLines(t, path)
	if len(lines) != 11 {
		t.Fatalf("got %d lines, want header + 10", len(lines))
	}
	var bundle Bundle
	if err := json.Unmarshal([]byte(lines[0]), &bundle); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if bundle.EntryCount != 10 || bundle.Skipped != 1 {
		t.Errorf("bundle counts = %d/%d, want 10/1", bundle.EntryCount, bundle.Skipped)
	}
	if bundle.GoVersion == "" || bundle.OS == "" {
		t.Errorf("runtime fields missing: %+v", bundle)
	}
}

func TestExportPreservesLines(t *testing.T) {
	src := seedLogFile(t, 5, false)

	out, _, err := Export(src, t.TempDir())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := readLines(t, src)
	got := readLines(t, out)[1:]
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExportMissingFile(t *testing.T) {
	_, _, err := Export(filepath.Join(t.TempDir(), "absent.log"), t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want os.ErrNotExist, got %v", err)
	}
}
