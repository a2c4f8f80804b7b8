//go:build windows || darwin

package capture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickPrimary(t *testing.T) {
	displays := []image.Rectangle{
		image.Rect(-1920, 0, 0, 1080),
		{},
		image.Rect(0, 0, 2560, 1440),
	}
	b, err := pickPrimary(len(displays), func(i int) image.Rectangle { return displays[i] })
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2560, 1440), b)

	// no display at the origin falls back to the first usable one
	b, err = pickPrimary(2, func(i int) image.Rectangle { return displays[i] })
	require.NoError(t, err)
	assert.Equal(t, displays[0], b)

	_, err = pickPrimary(1, func(int) image.Rectangle { return image.Rectangle{} })
	assert.ErrorIs(t, err, errNoActiveDisplay)
}

func TestFullScreenSourceNative(t *testing.T) {
	assert.False(t, WindowCaptureSupported)

	src := NewFullScreenSource(nil)
	if err := src.Ping(); err != nil {
		t.Skipf("no display attached: %v", err)
	}

	img, err := src.Capture()
	require.NoError(t, err)
	assert.False(t, img.Bounds().Empty())
}
