// Package capture grabs still images of the screen or of a named window and
// writes them as PNG files.
package capture

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/fileutil"
)

var (
	// ErrCapture marks a failed screen or window grab, or a failed encode.
	ErrCapture = errors.New("capture failed")
	// ErrEnumeration marks a failure to list windows.
	ErrEnumeration = errors.New("window enumeration failed")
	// ErrWindowNotFound is returned by NamedWindowSource when no window title
	// contains any of its patterns. It wraps ErrCapture.
	ErrWindowNotFound = fmt.Errorf("%w: no matching window", ErrCapture)
	// ErrNoWindowSystem is returned for window operations on hosts where
	// WindowCaptureSupported is false. It wraps ErrEnumeration.
	ErrNoWindowSystem = fmt.Errorf("%w: window listing needs an X11 display", ErrEnumeration)
)

// Source produces one still image per call. Implementations must be safe for
// use from more than one goroutine.
type Source interface {
	Capture() (image.Image, error)
	Describe() string
}

// Window is a top-level window as reported by the window manager.
type Window struct {
	ID     uint32 `json:"id"`
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// String formats w as "<title> (<w>x<h>)".
func (w Window) String() string {
	return fmt.Sprintf("%s (%dx%d)", w.Title, w.Width, w.Height)
}

// NewSource builds the source selected by cfg on display d. Window capture
// matches against titles.
func NewSource(d *Display, cfg config.CaptureConfig, titles []string) Source {
	if cfg.Source == config.SourceWindow {
		return NewNamedWindowSource(d, titles)
	}
	return NewFullScreenSource(d)
}

// Pinger is a capture backend that can be health-checked.
type Pinger interface {
	Name() string
	Ping() error
}

// Probe returns the backend a session with cfg would depend on: the X
// display for window capture, the full-screen source otherwise.
func Probe(d *Display, cfg config.CaptureConfig) Pinger {
	if cfg.Source == config.SourceWindow {
		return d
	}
	return NewFullScreenSource(d)
}

// EncodePNG writes img losslessly. BestSpeed keeps per-frame CPU low while
// the monitored application is running on the same host.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("%w: encode png: %w", ErrCapture, err)
	}
	return nil
}

// CaptureOnce writes a single screenshot_<ts>.png into dir, creating dir if
// needed and suffixing the name on collision. It returns the file path.
func CaptureOnce(src Source, dir string, now time.Time) (string, error) {
	img, err := src.Capture()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot directory: %w", err)
	}
	f, err := fileutil.CreateUniqueFile(dir, fileutil.ScreenshotName(now))
	if err != nil {
		return "", fmt.Errorf("create screenshot file: %w", err)
	}
	path := f.Name()

	if err := EncodePNG(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close screenshot file: %w", err)
	}
	return filepath.Clean(path), nil
}

// FindWindow returns the first window, in list order, whose lowercased title
// contains any lowercased pattern. Patterns are tried in order.
func FindWindow(windows []Window, patterns []string) (Window, bool) {
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		for _, w := range windows {
			if strings.Contains(strings.ToLower(w.Title), pattern) {
				return w, true
			}
		}
	}
	return Window{}, false
}

// FormatWindows renders windows for list_windows.
func FormatWindows(windows []Window) []string {
	out := make([]string, len(windows))
	for i, w := range windows {
		out[i] = w.String()
	}
	return out
}
