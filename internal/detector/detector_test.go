package detector

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/logging"
)

func staticLister(procs ...Process) Lister {
	return ListerFunc(func() ([]Process, error) { return procs, nil })
}

func target(names ...string) config.TargetSpec {
	return config.TargetSpec{ProcessNames: names, CheckIntervalMs: 1000}
}

func TestIsTargetRunning(t *testing.T) {
	tests := []struct {
		name     string
		procs    []Process
		patterns []string
		want     DetectionResult
	}{
		{
			name:     "case-insensitive match keeps original case",
			procs:    []Process{{PID: 10, Name: "bash"}, {PID: 42, Name: "Kiwoom.exe"}},
			patterns: []string{"kiwoom.exe"},
			want:     DetectionResult{Found: true, Name: "Kiwoom.exe"},
		},
		{
			name:     "substring match",
			procs:    []Process{{PID: 7, Name: "KOAStudioSA.exe"}},
			patterns: []string{"KOAStudio"},
			want:     DetectionResult{Found: true, Name: "KOAStudioSA.exe"},
		},
		{
			name:     "no match",
			procs:    []Process{{PID: 1, Name: "init"}, {PID: 2, Name: "sshd"}},
			patterns: []string{"kiwoom.exe", "hable.exe"},
			want:     DetectionResult{},
		},
		{
			name:     "lowest pid wins",
			procs:    []Process{{PID: 900, Name: "hable.exe"}, {PID: 300, Name: "eFriend.exe"}},
			patterns: []string{"hable.exe", "efriend.exe"},
			want:     DetectionResult{Found: true, Name: "eFriend.exe"},
		},
		{
			name:     "blank patterns ignored",
			procs:    []Process{{PID: 1, Name: "anything"}},
			patterns: []string{"", "  "},
			want:     DetectionResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(staticLister(tt.procs...), target(tt.patterns...))
			got := d.IsTargetRunning()
			assert.Equal(t, tt.want.Found, got.Found)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.False(t, got.EvaluatedAt.IsZero())
		})
	}
}

func TestIsTargetRunningEnumerationError(t *testing.T) {
	var errBuf bytes.Buffer
	d := New(ListerFunc(func() ([]Process, error) {
		return nil, errors.New("permission denied")
	}), target("kiwoom.exe"))
	d.SetLoggers(logging.New(&bytes.Buffer{}, &errBuf, "[test]"))

	got := d.IsTargetRunning()
	assert.False(t, got.Found)
	assert.Empty(t, got.Name)
	assert.Contains(t, errBuf.String(), "permission denied")
}

func TestIsTargetRunningStableAcrossPolls(t *testing.T) {
	procs := []Process{{PID: 5, Name: "Ctrade.exe"}, {PID: 3, Name: "kiwoom.exe"}}
	d := New(staticLister(procs...), config.Default().Target)

	first := d.IsTargetRunning()
	require.True(t, first.Found)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Name, d.IsTargetRunning().Name)
	}
	assert.Equal(t, "kiwoom.exe", first.Name)
}

func TestIsTargetRunningFreshSnapshot(t *testing.T) {
	running := false
	d := New(ListerFunc(func() ([]Process, error) {
		if running {
			return []Process{{PID: 99, Name: "hable.exe"}}, nil
		}
		return nil, nil
	}), target("HABLE.EXE"))

	assert.False(t, d.IsTargetRunning().Found)
	running = true
	assert.True(t, d.IsTargetRunning().Found)
	running = false
	assert.False(t, d.IsTargetRunning().Found)
}

func TestSetTargetRetargets(t *testing.T) {
	d := New(staticLister(Process{PID: 1, Name: "eFriend.exe"}), target("kiwoom.exe"))
	assert.False(t, d.IsTargetRunning().Found)

	d.SetTarget(target("efriend"))
	got := d.IsTargetRunning()
	assert.True(t, got.Found)
	assert.Equal(t, "eFriend.exe", got.Name)
}
