package fileutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNames(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)

	if got := SessionDirName(ts); got != "recording_20260304_050607" {
		t.Errorf("SessionDirName = %q", got)
	}
	if got := ScreenshotName(ts); got != "screenshot_20260304_050607.png" {
		t.Errorf("ScreenshotName = %q", got)
	}

	frames := map[int]string{
		1:       "frame_000001.png",
		42:      "frame_000042.png",
		999999:  "frame_999999.png",
		1000000: "frame_1000000.png",
	}
	for n, want := range frames {
		if got := FrameFileName(n); got != want {
			t.Errorf("FrameFileName(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestMakeUniqueDirSuffixes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "recordings")

	want := []string{"recording_x", "recording_x_2", "recording_x_3"}
	for _, w := range want {
		got, err := MakeUniqueDir(root, "recording_x")
		if err != nil {
			t.Fatalf("MakeUniqueDir: %v", err)
		}
		if filepath.Base(got) != w {
			t.Errorf("got %s, want %s", filepath.Base(got), w)
		}
		if info, err := os.Stat(got); err != nil || !info.IsDir() {
			t.Errorf("%s is not a directory", got)
		}
	}
}

func TestMakeUniqueDirConcurrent(t *testing.T) {
	root := t.TempDir()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir, err := MakeUniqueDir(root, "recording_same")
			if err != nil {
				t.Errorf("MakeUniqueDir: %v", err)
				return
			}
			mu.Lock()
			seen[dir] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("got %d distinct directories, want %d", len(seen), n)
	}
}

func TestMakeUniqueDirRootIsFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := MakeUniqueDir(root, "recording_x"); err == nil {
		t.Fatal("expected error when root is a regular file")
	}
}

func TestCreateUniqueFile(t *testing.T) {
	dir := t.TempDir()

	for _, want := range []string{"screenshot_a.png", "screenshot_a_2.png"} {
		f, err := CreateUniqueFile(dir, "screenshot_a.png")
		if err != nil {
			t.Fatalf("CreateUniqueFile: %v", err)
		}
		f.Close()
		if filepath.Base(f.Name()) != want {
			t.Errorf("got %s, want %s", filepath.Base(f.Name()), want)
		}
	}
}
