package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/htswatch/internal/app"
	"github.com/tiroq/htswatch/internal/capture"
	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/diaglog"
	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/notify"
	"github.com/tiroq/htswatch/internal/preflight"
)

// localApp builds an application context for one-shot operations that do
// not need the daemon.
func localApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{Store: config.NewStore(*cfg, configPath)}), nil
}

var screenshotDir string

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture one PNG with the configured capture source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := localApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.CaptureScreenshot(screenshotDir)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List top-level windows as \"title (WxH)\"",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := localApp()
		if err != nil {
			return err
		}
		defer a.Close()

		windows, err := a.ListWindows()
		if err != nil {
			return err
		}
		for _, w := range windows {
			fmt.Println(w)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or replace the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <file.json>",
	Short: "Replace the whole configuration with file.json and reload the daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var cfg config.Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("invalid config %s: %w", args[0], err)
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(path, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)

		if _, ok := daemonPID(); !ok {
			return nil
		}
		return sendCommand(ipc.CmdReload)
	},
}

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream daemon events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchAddr
		if addr == "" {
			if snap, err := channel().ReadStatus(); err == nil && snap.HubAddr != "" {
				addr = snap.HubAddr
			} else if cfg, err := loadConfig(); err == nil {
				addr = cfg.Notifications.HubAddr
			}
		}
		if addr == "" {
			return fmt.Errorf("event hub is disabled (notifications.hub_addr is empty)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "Watching ws://%s%s (Ctrl-C to stop)\n", addr, notify.EventsPath)
		err := notify.Dial(ctx, addr, func(e notify.Event) {
			fmt.Println(formatEvent(e))
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func formatEvent(e notify.Event) string {
	ts := e.Time.Local().Format(time.TimeOnly)
	switch e.Kind {
	case notify.KindTargetDetected:
		if e.Detected {
			return fmt.Sprintf("%s  target detected: %s", ts, e.Target)
		}
		return fmt.Sprintf("%s  target gone", ts)
	case notify.KindRecordingStarted:
		return fmt.Sprintf("%s  recording started (%s): %s", ts, e.Origin, e.OutputDir)
	case notify.KindRecordingStopped:
		return fmt.Sprintf("%s  recording stopped (%s): %s, %d frames", ts, e.Origin, e.OutputDir, e.Frames)
	case notify.KindRecordingDuration:
		return fmt.Sprintf("%s  recording %s, %d frames", ts, formatElapsed(e.ElapsedSeconds), e.Frames)
	}
	return fmt.Sprintf("%s  %s", ts, e.Kind)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		display := capture.NewDisplay(cfg.Capture.Display)
		defer display.Close()

		result := preflight.Run(cfg, capture.Probe(display, cfg.Capture))
		if pid, ok := daemonPID(); ok {
			fmt.Println(okStyle.Render(fmt.Sprintf("%s is running (pid %d)", daemonName, pid)))
		} else {
			fmt.Println(warnStyle.Render(daemonName + " is not running"))
		}
		fmt.Print(renderPreflight(result))

		if !result.OK {
			return fmt.Errorf("preflight failed")
		}
		return nil
	},
}

func renderPreflight(r *preflight.Result) string {
	head := okStyle.Render(r.Message)
	if !r.OK {
		head = recStyle.Render(r.Message)
	}
	out := head + "\n"
	for _, issue := range r.Issues {
		out += warnStyle.Render("  issue: ") + issue + "\n"
	}
	for _, w := range r.Warnings {
		out += dimStyle.Render("  warning: ") + w + "\n"
	}
	for _, fix := range r.Fixes {
		out += "  " + fix + "\n"
	}
	return out
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Diagnostic log tools",
}

var diagExportCmd = &cobra.Command{
	Use:   "export [dest]",
	Short: "Bundle the diagnostic log into dest (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := "."
		if len(args) == 1 {
			dest = args[0]
		}
		diaglog.Version = Version
		path, n, err := diaglog.Export(diaglog.Path(), dest)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w\nhint: start %s with %s=true", err, daemonName, diaglog.EnvDebug)
			}
			return err
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		return nil
	},
}

func init() {
	screenshotCmd.Flags().StringVarP(&screenshotDir, "dir", "d", "", "output directory (default: output_dir from config)")
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "hub address host:port (default: from status or config)")

	configCmd.AddCommand(configShowCmd, configSetCmd)
	diagCmd.AddCommand(diagExportCmd)
	rootCmd.AddCommand(screenshotCmd, windowsCmd, configCmd, watchCmd, doctorCmd, diagCmd)
}
