package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/ipc"
)

// commandSettle lets the CLI finish writing before the file is claimed.
const commandSettle = 50 * time.Millisecond

// commandPoll is the fallback cadence when fsnotify is unavailable or
// misses an event.
const commandPoll = time.Second

// HandleCommand applies one control command and rewrites the status file.
func (a *App) HandleCommand(cmd ipc.Command) error {
	a.logs.Out.Printf("Received command: %s", cmd)
	a.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentHTSWatchCore,
		Event:     diaglog.EventCommandReceived,
		Fields:    map[string]any{"command": string(cmd)},
	})

	var err error
	switch cmd {
	case ipc.CmdStart:
		_, err = a.StartMonitoring()

	case ipc.CmdStop:
		_, err = a.StopMonitoring()

	case ipc.CmdToggle:
		if a.session.IsActive() {
			_, err = a.StopMonitoring()
		} else {
			_, err = a.StartMonitoring()
		}

	case ipc.CmdAuto, ipc.CmdResume:
		a.sm.SetMode(ipc.ModeAuto)
		a.logs.Out.Println("Mode changed to AUTO")

	case ipc.CmdPause:
		a.sm.SetMode(ipc.ModePaused)
		a.logs.Out.Println("Mode changed to PAUSED (detection frozen, sessions untouched)")

	case ipc.CmdReload:
		err = a.ReloadConfig()

	case ipc.CmdQuit:
		a.logs.Out.Println("Quit requested")
		a.RequestQuit()

	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		if isBenign(err) {
			a.logs.Out.Printf("Command %s ignored: %v", cmd, err)
		} else {
			a.logs.Err.Printf("Command %s failed: %v", cmd, err)
		}
	}
	a.setAction(string(cmd), err)
	a.writeStatus()
	return err
}

// RequestQuit asks Run to shut down.
func (a *App) RequestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// consumeCommand claims and handles the pending command, if any.
func (a *App) consumeCommand() {
	time.Sleep(commandSettle)

	cmd, err := a.channel.ReadCommand()
	if err != nil {
		a.logs.Err.Printf("Failed to read command: %v", err)
		a.setAction("", err)
		a.writeStatus()
		return
	}
	if cmd == "" {
		return
	}
	_ = a.HandleCommand(cmd)
}

// watchCommands consumes commands until ctx is done, using fsnotify on the
// channel directory with a polling fallback.
func (a *App) watchCommands(ctx context.Context) {
	cmdPath := a.channel.CommandPath()

	if err := os.MkdirAll(a.channel.Dir(), 0755); err != nil {
		a.logs.Err.Printf("Failed to create command directory: %v", err)
	}

	// a command written before the daemon started is still honoured
	if _, err := os.Stat(cmdPath); err == nil {
		a.consumeCommand()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.logs.Err.Printf("fsnotify not available, falling back to polling: %v", err)
		a.pollCommands(ctx)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			a.logs.Err.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(a.channel.Dir()); err != nil {
		a.logs.Err.Printf("Failed to watch command directory, falling back to polling: %v", err)
		a.pollCommands(ctx)
		return
	}

	a.logs.Out.Println("Command watcher started (using fsnotify)")

	pollTicker := time.NewTicker(commandPoll)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				a.logs.Out.Println("fsnotify watcher closed, switching to polling")
				a.pollCommands(ctx)
				return
			}
			if filepath.Clean(event.Name) == filepath.Clean(cmdPath) &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				a.consumeCommand()
			}

		case <-pollTicker.C:
			// catches events fsnotify dropped
			if _, err := os.Stat(cmdPath); err == nil {
				a.consumeCommand()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				a.logs.Out.Println("fsnotify error channel closed, switching to polling")
				a.pollCommands(ctx)
				return
			}
			a.logs.Err.Printf("File watcher error: %v", err)
		}
	}
}

func (a *App) pollCommands(ctx context.Context) {
	a.logs.Out.Printf("Command watcher started (using polling fallback, %v interval)", commandPoll)

	ticker := time.NewTicker(commandPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(a.channel.CommandPath()); err == nil {
				a.consumeCommand()
			}
		}
	}
}
