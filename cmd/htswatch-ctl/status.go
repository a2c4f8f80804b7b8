package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tiroq/htswatch/internal/history"
	"github.com/tiroq/htswatch/internal/ipc"
)

// staleAfter marks a snapshot as outdated; the daemon rewrites it every poll.
const staleAfter = 10 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	recStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := channel().ReadStatus()
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no status yet; is %s running?", daemonName)
			}
			return fmt.Errorf("failed to read status: %w", err)
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		pid, running := daemonPID()
		running = running && (snap.PID == 0 || snap.PID == pid)
		fmt.Println(renderStatus(snap, running, time.Now()))
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent recording sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.Recent(historyLimit)
		if err != nil {
			return err
		}
		fmt.Print(renderHistory(recs))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status snapshot")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions to show")
	rootCmd.AddCommand(statusCmd, historyCmd)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderStatus formats a snapshot. running is whether the daemon process
// that wrote it is still alive.
func renderStatus(snap *ipc.StatusSnapshot, running bool, now time.Time) string {
	var rows []string
	rows = append(rows, titleStyle.Render("htswatch"))

	switch {
	case !running:
		rows = append(rows, row("daemon", warnStyle.Render("not running")))
	case snap.Stale(now, staleAfter):
		rows = append(rows, row("daemon", warnStyle.Render("unresponsive, last update "+snap.Timestamp.Format(time.TimeOnly))))
	default:
		rows = append(rows, row("daemon", okStyle.Render(fmt.Sprintf("running (pid %d)", snap.PID))))
	}

	rows = append(rows, row("mode", string(snap.Mode)))

	if snap.TargetDetected {
		rows = append(rows, row("target", okStyle.Render(snap.TargetName)))
	} else {
		rows = append(rows, row("target", dimStyle.Render("not running")))
	}

	if snap.IsRecording {
		rec := "● REC"
		if snap.ElapsedSeconds != nil {
			rec += " " + formatElapsed(*snap.ElapsedSeconds)
		}
		rows = append(rows, row("recording", recStyle.Render(rec)))
		rows = append(rows, row("frames", fmt.Sprintf("%d", snap.FrameCount)))
		rows = append(rows, row("output", snap.OutputDir))
	} else {
		rows = append(rows, row("recording", dimStyle.Render("idle")))
	}

	if snap.LastAction != "" {
		rows = append(rows, row("last action", snap.LastAction))
	}
	if snap.LastError != "" {
		rows = append(rows, row("last error", warnStyle.Render(snap.LastError)))
	}
	if snap.HubAddr != "" {
		rows = append(rows, row("events", dimStyle.Render("ws://"+snap.HubAddr)))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatElapsed(secs int64) string {
	d := time.Duration(secs) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func renderHistory(recs []history.SessionRecord) string {
	if len(recs) == 0 {
		return dimStyle.Render("No recorded sessions") + "\n"
	}

	var b strings.Builder
	for _, r := range recs {
		started := r.StartedAt.Local().Format("2006-01-02 15:04:05")
		length := dimStyle.Render("open")
		if r.StoppedAt != nil {
			length = formatElapsed(int64(r.Duration() / time.Second))
		}
		origin := r.StartOrigin
		if r.StopOrigin != "" {
			origin += "/" + r.StopOrigin
		}
		fmt.Fprintf(&b, "%s  %s  %5d frames  %-16s %s\n",
			started, length, r.Frames, origin, r.Directory)
	}
	return b.String()
}
