package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/monitor"
	"github.com/tiroq/htswatch/internal/notify"
	"github.com/tiroq/htswatch/internal/recorder"
	"github.com/tiroq/htswatch/internal/statemachine"
)

// ShutdownGrace bounds how long Run waits for frame tasks after stopping.
const ShutdownGrace = 3 * time.Second

// Run drives the daemon until ctx is done or a quit command arrives: the
// orchestrator loop, the command watcher and, when configured, the event
// hub. On the way out it stops an active session and writes a final status.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.history != nil {
		if n, err := a.history.CloseDangling(a.now(), string(recorder.OriginCrash)); err != nil {
			a.logs.Err.Printf("Failed to close dangling history rows: %v", err)
		} else if n > 0 {
			a.logs.Out.Printf("Closed %d session(s) left open by a previous run", n)
		}
	}

	var wg sync.WaitGroup

	if addr := a.store.Get().Notifications.HubAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.hub.Serve(ctx, addr); err != nil {
				a.logs.Err.Printf("Event hub stopped: %v", err)
			}
		}()
	}

	if a.channel != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watchCommands(ctx)
		}()
	}

	a.setAction("started", nil)
	a.writeStatus()

	a.mon.Run(ctx)

	a.shutdown()
	wg.Wait()
	return nil
}

func (a *App) shutdown() {
	if a.session.IsActive() {
		summary, err := a.StopSession(recorder.OriginShutdown)
		if err == nil {
			a.sink.Emit(notify.RecordingStopped(summary.OutputDir, string(recorder.OriginShutdown), summary.Frames))
		} else if !errors.Is(err, recorder.ErrNotActive) {
			a.logs.Err.Printf("Failed to stop recording on shutdown: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := a.session.Wait(ctx); err != nil {
		a.logs.Err.Printf("Frame task still running after %v", ShutdownGrace)
	}

	a.setAction("shutdown", nil)
	a.writeStatus()
	a.Close()
}

func (a *App) afterTick(r monitor.TickReport) {
	if r.Transition != statemachine.None {
		a.setAction("auto-"+r.Transition.String(), r.Err)
	}
	a.writeStatus()
}

// Snapshot builds the status file contents from the last poll, without
// touching the process table.
func (a *App) Snapshot() *ipc.StatusSnapshot {
	result := a.mon.LastResult()
	st := a.session.Status()

	a.statusMu.Lock()
	action, lastErr := a.lastAction, a.lastError
	a.statusMu.Unlock()

	snap := &ipc.StatusSnapshot{
		Mode:           a.sm.Mode(),
		IsRecording:    st.Active,
		TargetDetected: result.Found,
		TargetName:     result.Name,
		FrameCount:     st.FrameCount,
		OutputDir:      st.OutputDir,
		LastAction:     action,
		LastError:      lastErr,
		Timestamp:      a.now(),
		HubAddr:        a.store.Get().Notifications.HubAddr,
		PID:            os.Getpid(),
	}
	if secs, ok := st.ElapsedSeconds(); ok {
		snap.ElapsedSeconds = &secs
	}
	return snap
}

func (a *App) writeStatus() {
	if a.channel == nil {
		return
	}
	if err := a.channel.WriteStatus(a.Snapshot()); err != nil {
		a.logs.Err.Printf("Failed to write status: %v", err)
	}
}
