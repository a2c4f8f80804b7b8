package notify

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tiroq/htswatch/internal/logging"
)

// Runner executes a notification command. Tests replace it.
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop raises a native notification when recording starts or stops,
// through notify-send on Linux and osascript on macOS. Commands run on their
// own goroutine so Emit never waits on them.
type Desktop struct {
	goos string
	run  Runner
	logs *logging.Loggers
}

// NewDesktop returns a sink for the current OS.
func NewDesktop(l *logging.Loggers) *Desktop {
	return &Desktop{goos: runtime.GOOS, run: execRunner, logs: l.OrDiscard()}
}

// Emit notifies for recording start and stop only.
func (d *Desktop) Emit(e Event) {
	title, message, ok := desktopText(e)
	if !ok {
		return
	}
	name, args, ok := d.command(title, message)
	if !ok {
		return
	}
	go func() {
		if err := d.run(name, args...); err != nil {
			d.logs.Err.Printf("Desktop notification failed: %v", err)
		}
	}()
}

func desktopText(e Event) (title, message string, ok bool) {
	switch e.Kind {
	case KindRecordingStarted:
		return "htswatch", "Recording started: " + filepath.Base(e.OutputDir), true
	case KindRecordingStopped:
		return "htswatch", fmt.Sprintf("Recording stopped: %s (%d frames)", filepath.Base(e.OutputDir), e.Frames), true
	}
	return "", "", false
}

func (d *Desktop) command(title, message string) (string, []string, bool) {
	switch d.goos {
	case "linux":
		return "notify-send", []string{"--app-name=htswatch", title, message}, true
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(message), escapeAppleScript(title))
		return "osascript", []string{"-e", script}, true
	}
	return "", nil, false
}

var appleScriptEscaper = strings.NewReplacer(
	`"`, `\"`,
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeAppleScript(s string) string {
	return appleScriptEscaper.Replace(s)
}
