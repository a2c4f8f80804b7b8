// Package ipc is the file-based channel between the daemon and the CLI: a
// one-line command file the CLI writes and the daemon consumes, and a status
// snapshot the daemon rewrites after every change.
package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tiroq/htswatch/internal/config"
)

// Command is a control request from the CLI.
type Command string

const (
	CmdStart  Command = "start"  // start a session now
	CmdStop   Command = "stop"   // stop the running session
	CmdToggle Command = "toggle" // start or stop, whichever applies
	CmdAuto   Command = "auto"   // resume edge-triggered recording
	CmdResume Command = "resume" // alias for auto
	CmdPause  Command = "pause"  // freeze detection
	CmdReload Command = "reload" // re-read the config file
	CmdQuit   Command = "quit"   // shut the daemon down
)

const (
	commandFile = "cmd.txt"
	statusFile  = "status.json"
)

// ParseCommand maps text to a known command. Unknown text yields false.
func ParseCommand(s string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	switch cmd {
	case CmdStart, CmdStop, CmdToggle, CmdAuto, CmdPause, CmdReload, CmdQuit:
		return cmd, true
	case CmdResume:
		return CmdAuto, true
	}
	return "", false
}

// Channel is the pair of files under one directory.
type Channel struct {
	dir string
}

// NewChannel uses dir; empty means ~/.cache/htswatch.
func NewChannel(dir string) *Channel {
	if dir == "" {
		dir = config.CacheDir()
	}
	return &Channel{dir: dir}
}

// Dir returns the channel directory.
func (c *Channel) Dir() string { return c.dir }

// CommandPath returns the command file path.
func (c *Channel) CommandPath() string { return filepath.Join(c.dir, commandFile) }

// StatusPath returns the status snapshot path.
func (c *Channel) StatusPath() string { return filepath.Join(c.dir, statusFile) }

// WriteCommand replaces any pending command with cmd.
func (c *Channel) WriteCommand(cmd Command) error {
	if _, ok := ParseCommand(string(cmd)); !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.CommandPath(), []byte(string(cmd)+"\n"), 0644)
}

// ReadCommand consumes the pending command, if any. The file is renamed
// before it is read so a command written concurrently is kept for the next
// call instead of being cleared unseen. Unknown commands are consumed and
// reported as an error.
func (c *Channel) ReadCommand() (Command, error) {
	claimed := c.CommandPath() + ".claimed"
	if err := os.Rename(c.CommandPath(), claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer os.Remove(claimed)

	data, err := os.ReadFile(claimed)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", nil
	}
	cmd, ok := ParseCommand(text)
	if !ok {
		return "", fmt.Errorf("unknown command %q", text)
	}
	return cmd, nil
}
