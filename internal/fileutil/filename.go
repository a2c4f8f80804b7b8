package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the local-time stamp used in session and screenshot
// names.
const TimestampLayout = "20060102_150405"

// maxCollisionSuffix bounds the _2, _3, ... search for a free name.
const maxCollisionSuffix = 1000

// SessionDirName returns recording_<YYYYMMDD_HHMMSS> for t in local time.
func SessionDirName(t time.Time) string {
	return "recording_" + t.Local().Format(TimestampLayout)
}

// ScreenshotName returns screenshot_<YYYYMMDD_HHMMSS>.png for t in local time.
func ScreenshotName(t time.Time) string {
	return "screenshot_" + t.Local().Format(TimestampLayout) + ".png"
}

// FrameFileName returns frame_<n, zero padded to six digits>.png.
func FrameFileName(n int) string {
	return fmt.Sprintf("frame_%06d.png", n)
}

// MakeUniqueDir creates root/name, or root/name_2, root/name_3 and so on when
// the name is taken. Creation is exclusive, so two callers racing on the
// same second never share a directory. root itself is created if missing.
func MakeUniqueDir(root, name string) (string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}

	for i := 1; i <= maxCollisionSuffix; i++ {
		path := filepath.Join(root, withSuffix(name, "", i))
		err := os.Mkdir(path, 0755)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create session directory: %w", err)
		}
	}
	return "", fmt.Errorf("no free directory name for %s in %s", name, root)
}

// CreateUniqueFile opens dir/name for writing with O_EXCL, falling back to
// name_2.ext, name_3.ext and so on. The caller closes the file.
func CreateUniqueFile(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	for i := 1; i <= maxCollisionSuffix; i++ {
		path := filepath.Join(dir, withSuffix(base, ext, i))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free file name for %s in %s", name, dir)
}

func withSuffix(base, ext string, i int) string {
	if i == 1 {
		return base + ext
	}
	return fmt.Sprintf("%s_%d%s", base, i, ext)
}
