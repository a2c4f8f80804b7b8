//go:build windows || darwin

package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// WindowCaptureSupported reports whether named-window capture and window
// listing are available. Both go through an X server, which native Windows
// and macOS hosts do not run.
const WindowCaptureSupported = false

var errNoActiveDisplay = errors.New("no active display")

// FullScreenSource grabs the primary display through the platform screen API
// (GDI on Windows, CoreGraphics on macOS).
type FullScreenSource struct{}

// NewFullScreenSource returns a source for the primary display. The X
// display is not used on this platform.
func NewFullScreenSource(*Display) *FullScreenSource {
	return &FullScreenSource{}
}

// Capture grabs the primary display.
func (s *FullScreenSource) Capture() (image.Image, error) {
	bounds, err := primaryBounds()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return img, nil
}

// Describe names the source.
func (s *FullScreenSource) Describe() string { return "screen primary" }

// Name names the display for preflight messages.
func (s *FullScreenSource) Name() string { return "primary" }

// Ping checks that a display is attached.
func (s *FullScreenSource) Ping() error {
	if _, err := primaryBounds(); err != nil {
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return nil
}

// primaryBounds returns the bounds of the display at the virtual-screen
// origin, which both platforms reserve for the primary display.
func primaryBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n < 1 {
		return image.Rectangle{}, errNoActiveDisplay
	}
	return pickPrimary(n, screenshot.GetDisplayBounds)
}

func pickPrimary(n int, boundsOf func(int) image.Rectangle) (image.Rectangle, error) {
	var first image.Rectangle
	for i := 0; i < n; i++ {
		b := boundsOf(i)
		if b.Empty() {
			continue
		}
		if b.Min == (image.Point{}) {
			return b, nil
		}
		if first.Empty() {
			first = b
		}
	}
	if first.Empty() {
		return image.Rectangle{}, errNoActiveDisplay
	}
	return first, nil
}
