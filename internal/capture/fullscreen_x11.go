//go:build !windows && !darwin

package capture

import "image"

// WindowCaptureSupported reports whether named-window capture and window
// listing are available. Both go through the X server.
const WindowCaptureSupported = true

// FullScreenSource grabs the whole root window of its display.
type FullScreenSource struct {
	display *Display
}

// NewFullScreenSource returns a source for the primary screen of d.
func NewFullScreenSource(d *Display) *FullScreenSource {
	return &FullScreenSource{display: d}
}

// Capture grabs the screen.
func (s *FullScreenSource) Capture() (image.Image, error) {
	return s.display.grab(image.Rectangle{}, true)
}

// Describe names the source.
func (s *FullScreenSource) Describe() string {
	return "screen " + s.display.Name()
}

// Name returns the display name.
func (s *FullScreenSource) Name() string { return s.display.Name() }

// Ping opens the display connection if needed.
func (s *FullScreenSource) Ping() error { return s.display.Ping() }
