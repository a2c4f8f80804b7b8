package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Capture source kinds.
const (
	SourceScreen = "screen"
	SourceWindow = "window"
)

// TargetSpec describes which external application triggers recording.
// Matching is case-insensitive substring matching on both lists.
type TargetSpec struct {
	ProcessNames    []string `json:"process_names" mapstructure:"process_names"`
	WindowTitles    []string `json:"window_titles" mapstructure:"window_titles"`
	CheckIntervalMs int      `json:"check_interval_ms" mapstructure:"check_interval_ms"`
}

// CaptureConfig controls the frame capture task.
type CaptureConfig struct {
	Source          string `json:"source" mapstructure:"source"` // "screen" or "window"
	FrameIntervalMs int    `json:"frame_interval_ms" mapstructure:"frame_interval_ms"`
	Display         string `json:"display" mapstructure:"display"` // X display, empty uses $DISPLAY
}

// NotificationConfig controls outward event delivery.
type NotificationConfig struct {
	Desktop bool   `json:"desktop" mapstructure:"desktop"`
	HubAddr string `json:"hub_addr" mapstructure:"hub_addr"` // empty disables the websocket hub
}

// HistoryConfig controls the sqlite session ledger.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"db_path" mapstructure:"db_path"`
}

// Config is the whole application configuration. It is replaced as a unit.
type Config struct {
	Target        TargetSpec         `json:"hts" mapstructure:"hts"`
	OutputDir     string             `json:"output_dir" mapstructure:"output_dir"`
	Capture       CaptureConfig      `json:"capture" mapstructure:"capture"`
	Notifications NotificationConfig `json:"notifications" mapstructure:"notifications"`
	History       HistoryConfig      `json:"history" mapstructure:"history"`
}

// Dir returns ~/.config/htswatch.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "htswatch")
}

// CacheDir returns ~/.cache/htswatch, where status and command files live.
func CacheDir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "htswatch")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Target: TargetSpec{
			ProcessNames: []string{
				"kiwoom.exe",
				"eFriend.exe",
				"Ctrade.exe",
				"KOAStudio.exe",
				"hable.exe",
			},
			WindowTitles: []string{
				"키움",
				"영웅문",
				"이베스트",
				"KB증권",
			},
			CheckIntervalMs: 1000,
		},
		OutputDir: "./recordings",
		Capture: CaptureConfig{
			Source:          SourceScreen,
			FrameIntervalMs: 1000,
		},
		Notifications: NotificationConfig{
			HubAddr: "127.0.0.1:7390",
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(Dir(), "history.db"),
		},
	}
}

// SetDefaults registers Default() on v so that keys missing from the file
// and the environment still resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("hts.process_names", d.Target.ProcessNames)
	v.SetDefault("hts.window_titles", d.Target.WindowTitles)
	v.SetDefault("hts.check_interval_ms", d.Target.CheckIntervalMs)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("capture.source", d.Capture.Source)
	v.SetDefault("capture.frame_interval_ms", d.Capture.FrameIntervalMs)
	v.SetDefault("capture.display", d.Capture.Display)
	v.SetDefault("notifications.desktop", d.Notifications.Desktop)
	v.SetDefault("notifications.hub_addr", d.Notifications.HubAddr)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.db_path", d.History.DBPath)
}

// Load reads the JSON config at path (DefaultPath when empty), layering
// HTSWATCH_* environment overrides on top. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("HTSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path as indented JSON using temp file + rename.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Validate checks a loaded configuration.
func (c *Config) Validate() error {
	if c.Target.CheckIntervalMs < 100 || c.Target.CheckIntervalMs > 60000 {
		return fmt.Errorf("hts.check_interval_ms must be between 100 and 60000, got %d", c.Target.CheckIntervalMs)
	}
	if c.Capture.FrameIntervalMs < 100 || c.Capture.FrameIntervalMs > 60000 {
		return fmt.Errorf("capture.frame_interval_ms must be between 100 and 60000, got %d", c.Capture.FrameIntervalMs)
	}

	hasName := false
	for _, name := range c.Target.ProcessNames {
		if strings.TrimSpace(name) != "" {
			hasName = true
			break
		}
	}
	if !hasName {
		return fmt.Errorf("at least one hts.process_names entry is required")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	switch c.Capture.Source {
	case SourceScreen:
	case SourceWindow:
		if len(c.Target.WindowTitles) == 0 {
			return fmt.Errorf("capture.source %q needs at least one hts.window_titles entry", SourceWindow)
		}
	default:
		return fmt.Errorf("capture.source must be %q or %q, got %q", SourceScreen, SourceWindow, c.Capture.Source)
	}

	return nil
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Target.ProcessNames = append([]string(nil), c.Target.ProcessNames...)
	out.Target.WindowTitles = append([]string(nil), c.Target.WindowTitles...)
	return out
}
