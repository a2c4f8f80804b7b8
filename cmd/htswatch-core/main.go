package main

import (
	"context"
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
	"github.com/tiroq/htswatch/internal/history"
	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/logging"
	"github.com/tiroq/htswatch/internal/pidfile"
	"github.com/tiroq/htswatch/internal/preflight"
)

const appName = "htswatch-core"

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

var (
	configPath string
	logDir     string
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Record the screen while an HTS trading application is running",
	Long: `htswatch-core polls the process table for a configured HTS application.
When it appears a recording session starts and writes one PNG frame per
interval into recording_<YYYYMMDD_HHMMSS>/; when it exits the session stops.
Control it with htswatch-ctl.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var exportDiagCmd = &cobra.Command{
	Use:   "export-diag [dest]",
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
				return fmt.Errorf("%w\nhint: run with %s=true to enable diagnostic logging", err, diaglog.EnvDebug)
			}
			return err
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		return nil
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is $HOME/.config/htswatch/config.json)")
	rootCmd.Flags().StringVar(&logDir, "log-dir", "/tmp", "directory for "+appName+".out.log and .err.log")
	rootCmd.AddCommand(exportDiagCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) (err error) {
	logs, err := logging.Open(logDir, appName)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logs.Close()

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n", appName, r)
			logs.Out.Printf("PANIC: %v", r)
			logs.Err.Printf("PANIC: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logs.Out.Println("===========================================")
	logs.Out.Println("Starting htswatch core v" + Version + "...")
	logs.Out.Printf("PID: %d", os.Getpid())
	logs.Out.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	logs.Out.Println("===========================================")

	pidPath := pidfile.DefaultPath(appName)
	logs.Out.Printf("Checking PID file: %s", pidPath)
	pf, err := pidfile.Acquire(pidPath)
	if err != nil {
		logs.Err.Printf("Failed to create PID file: %v", err)
		logs.Err.Printf("If you're sure no other instance is running, remove: %s", pidPath)
		return err
	}
	defer func() {
		logs.Out.Println("Cleaning up before exit...")
		if err := pf.Remove(); err != nil {
			logs.Err.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()

	diaglog.Version = Version
	diag, derr := diaglog.New(diaglog.Path())
	if derr != nil {
		logs.Err.Printf("Failed to open diagnostic log %s: %v (continuing without it)", diaglog.Path(), derr)
		diag = diaglog.NewNoOp()
	}
	defer diag.Close()
	if diag.Enabled() {
		logs.Out.Printf("[STARTUP] Diagnostic log: %s", diaglog.Path())
	}

	logs.Out.Println("[STARTUP] Loading configuration...")
	cfg, err := config.Load(configPath)
	if err != nil {
		logs.Err.Printf("Failed to load config: %v", err)
		return err
	}
	store := config.NewStore(*cfg, configPath)
	logs.Out.Printf("[STARTUP] Loaded config from %s: %d process names, poll=%v, frames every %v, source=%s, output=%s",
		store.Path(), len(cfg.Target.ProcessNames), store.PollInterval(), store.FrameInterval(),
		cfg.Capture.Source, cfg.OutputDir)

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.DBPath)
		if err != nil {
			logs.Err.Printf("[STARTUP] Session history disabled: %v", err)
			hist = nil
		} else {
			defer hist.Close()
			logs.Out.Printf("[STARTUP] Session history: %s", cfg.History.DBPath)
		}
	}

	a := app.New(app.Options{
		Store:   store,
		Channel: ipc.NewChannel(""),
		History: hist,
		Loggers: logs,
		Diag:    diag,
	})

	check := preflight.Run(cfg, capture.Probe(a.Display(), cfg.Capture))
	if check.OK {
		logs.Out.Printf("[STARTUP] %s", check.Message)
	} else {
		// capture problems are reported, not fatal: the display may come up later
		logs.Err.Printf("[STARTUP] %s", check.Message)
		for _, issue := range check.Issues {
			logs.Err.Printf("[STARTUP]   issue: %s", issue)
		}
		for _, fix := range check.Fixes {
			logs.Err.Printf("[STARTUP]   %s", fix)
		}
	}
	for _, w := range check.Warnings {
		logs.Out.Printf("[STARTUP]   warning: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logs.Out.Println("[STARTUP] Monitoring started")
	if err := a.Run(ctx); err != nil {
		logs.Err.Printf("Daemon stopped with error: %v", err)
		return err
	}
	logs.Out.Println("Shutdown complete")
	return nil
}
