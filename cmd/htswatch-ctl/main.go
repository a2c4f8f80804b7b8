package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/htswatch/internal/config"
	"github.com/tiroq/htswatch/internal/ipc"
	"github.com/tiroq/htswatch/internal/pidfile"
)

const daemonName = "htswatch-core"

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

var (
	configPath string
	cacheDir   string
	noWait     bool
)

var rootCmd = &cobra.Command{
	Use:   "htswatch-ctl",
	Short: "Control and inspect the htswatch recorder",
	Long: `htswatch-ctl talks to a running htswatch-core through the command file
and status snapshot in ~/.cache/htswatch, and to its event hub over a
websocket. Screenshot, window and config commands work without the daemon.`,
	SilenceUsage: true,
}

// controlCommands map 1:1 onto ipc commands consumed by the daemon.
var controlCommands = []struct {
	cmd   ipc.Command
	short string
}{
	{ipc.CmdStart, "Start a recording session now"},
	{ipc.CmdStop, "Stop the running recording session"},
	{ipc.CmdToggle, "Start or stop recording, whichever applies"},
	{ipc.CmdPause, "Freeze detection; running sessions are left alone"},
	{ipc.CmdResume, "Resume edge-triggered recording"},
	{ipc.CmdReload, "Re-read the config file"},
	{ipc.CmdQuit, "Stop any session and shut the daemon down"},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is $HOME/.config/htswatch/config.json)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "daemon status/command directory (default is $HOME/.cache/htswatch)")

	for _, cc := range controlCommands {
		cmd := cc.cmd
		c := &cobra.Command{
			Use:   string(cmd),
			Short: cc.short,
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return sendCommand(cmd)
			},
		}
		c.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for the daemon to acknowledge")
		rootCmd.AddCommand(c)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func channel() *ipc.Channel {
	return ipc.NewChannel(cacheDir)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// daemonPID returns the PID of the running daemon, if any.
func daemonPID() (int, bool) {
	return pidfile.Running(pidfile.DefaultPath(daemonName))
}

// sendCommand writes cmd and waits briefly for the daemon to publish a
// status snapshot that acknowledges it.
func sendCommand(cmd ipc.Command) error {
	ch := channel()

	if _, ok := daemonPID(); !ok {
		fmt.Fprintf(os.Stderr, "warning: %s does not appear to be running; the command will wait in %s\n",
			daemonName, ch.CommandPath())
	}

	sentAt := time.Now()
	if err := ch.WriteCommand(cmd); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}
	if noWait {
		fmt.Printf("Sent: %s\n", cmd)
		return nil
	}

	snap, ok := awaitAck(ch, sentAt, 3*time.Second)
	if !ok {
		fmt.Printf("Sent: %s (no acknowledgement yet)\n", cmd)
		return nil
	}
	if snap.LastError != "" {
		return fmt.Errorf("%s: %s", cmd, snap.LastError)
	}
	fmt.Printf("OK: %s\n", cmd)
	fmt.Println(renderStatus(snap, true, time.Now()))
	return nil
}

func awaitAck(ch *ipc.Channel, since time.Time, timeout time.Duration) (*ipc.StatusSnapshot, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(ch.CommandPath()); os.IsNotExist(err) {
			if snap, err := ch.ReadStatus(); err == nil && !snap.Timestamp.Before(since) {
				return snap, true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil, false
}
