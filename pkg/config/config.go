// Package config handles loading and saving dt configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/dirtree/config.yaml
//
// Command-line flags override anything read here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig selects where the tree is fetched from.
type SourceConfig struct {
	Dir  string `yaml:"dir,omitempty"`  // Directory holding tree.db / tree.jsonl (default .dirtree)
	Path string `yaml:"path,omitempty"` // Explicit source file; skips discovery
}

// TreeConfig holds engine settings.
type TreeConfig struct {
	Cascade string `yaml:"cascade,omitempty"` // live or seed
	Strict  bool   `yaml:"strict,omitempty"`  // Reject malformed trees at load
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	SearchLimit int  `yaml:"search_limit,omitempty"` // Max search input length
	ShowIDs     bool `yaml:"show_ids,omitempty"`     // Prefix titles with their id
}

// WatchConfig controls live reload of the source.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled,omitempty"`
	DebounceMs int   `yaml:"debounce_ms,omitempty"`
	PollMs     int   `yaml:"poll_ms,omitempty"`
}

// Config is the top-level configuration for dt.
type Config struct {
	Source SourceConfig `yaml:"source,omitempty"`
	Tree   TreeConfig   `yaml:"tree,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
	Watch  WatchConfig  `yaml:"watch,omitempty"`
}

// DefaultSearchLimit is the longest search input the UI accepts.
const DefaultSearchLimit = 10

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tree: TreeConfig{
			Cascade: "live",
		},
		UI: UIConfig{
			SearchLimit: DefaultSearchLimit,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
			PollMs:     2000,
		},
	}
}

// WatchEnabled reports whether live reload is on. Unset means on.
func (c Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// Debounce returns the watcher debounce as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// PollInterval returns the watcher polling interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollMs) * time.Millisecond
}

// ConfigDir returns the XDG config directory for dt.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "dirtree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "dirtree")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	cfg.Source.Dir = expandHome(cfg.Source.Dir)
	cfg.Source.Path = expandHome(cfg.Source.Path)
	return cfg, nil
}

// Validate rejects values the program cannot act on.
func (c Config) Validate() error {
	switch strings.ToLower(c.Tree.Cascade) {
	case "", "live", "seed":
	default:
		return fmt.Errorf("tree.cascade: unknown mode %q (want live or seed)", c.Tree.Cascade)
	}
	if c.UI.SearchLimit < 0 {
		return fmt.Errorf("ui.search_limit: must not be negative, got %d", c.UI.SearchLimit)
	}
	if c.Watch.DebounceMs < 0 || c.Watch.PollMs < 0 {
		return fmt.Errorf("watch: intervals must not be negative")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
