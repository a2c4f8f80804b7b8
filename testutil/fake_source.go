package testutil

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/tiroq/htswatch/internal/capture"
)

// FakeSource is a scripted capture.Source. Calls are numbered from 1.
type FakeSource struct {
	mu         sync.Mutex
	calls      int
	failOn     map[int]bool
	blockAfter int
	release    <-chan struct{}
}

// NewFakeSource returns a source that always succeeds with a tiny image.
func NewFakeSource() *FakeSource {
	return &FakeSource{failOn: make(map[int]bool)}
}

// FailOn makes the given calls return capture.ErrCapture.
func (f *FakeSource) FailOn(calls ...int) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range calls {
		f.failOn[n] = true
	}
	return f
}

// BlockAfter makes every call after the n-th wait until release is closed.
func (f *FakeSource) BlockAfter(n int, release <-chan struct{}) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockAfter = n
	f.release = release
	return f
}

// Calls returns how many times Capture has been entered.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Capture implements capture.Source.
func (f *FakeSource) Capture() (image.Image, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	fail := f.failOn[n]
	var wait <-chan struct{}
	if f.release != nil && n > f.blockAfter {
		wait = f.release
	}
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if fail {
		return nil, fmt.Errorf("%w: scripted failure on call %d", capture.ErrCapture, n)
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: uint8(n), A: 0xff})
	return img, nil
}

// Describe implements capture.Source.
func (f *FakeSource) Describe() string { return "fake" }
