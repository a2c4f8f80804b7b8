package capture

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/jezek/xgb/xproto"
)

// NamedWindowSource grabs the first window whose title contains one of its
// patterns. The window is looked up again whenever the cached one fails.
type NamedWindowSource struct {
	display *Display
	titles  []string

	mu     sync.Mutex
	cached xproto.Window
}

// NewNamedWindowSource returns a source that tracks a window by title.
func NewNamedWindowSource(d *Display, titles []string) *NamedWindowSource {
	return &NamedWindowSource{display: d, titles: append([]string(nil), titles...)}
}

// Capture grabs the tracked window.
func (s *NamedWindowSource) Capture() (image.Image, error) {
	sess, err := s.display.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	s.mu.Lock()
	win := s.cached
	s.mu.Unlock()

	if win != 0 {
		if rect, err := sess.windowRect(win); err == nil {
			if img, err := s.display.grab(rect, false); err == nil {
				return img, nil
			}
		}
	}

	windows, err := s.display.Windows()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	match, ok := FindWindow(windows, s.titles)
	if !ok {
		s.forget()
		return nil, ErrWindowNotFound
	}

	s.mu.Lock()
	s.cached = xproto.Window(match.ID)
	s.mu.Unlock()

	sess, err = s.display.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	rect, err := sess.windowRect(xproto.Window(match.ID))
	if err != nil {
		s.forget()
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	return s.display.grab(rect, false)
}

func (s *NamedWindowSource) forget() {
	s.mu.Lock()
	s.cached = 0
	s.mu.Unlock()
}

// Describe names the source.
func (s *NamedWindowSource) Describe() string {
	return fmt.Sprintf("window matching %s on %s", strings.Join(s.titles, "|"), s.display.Name())
}
