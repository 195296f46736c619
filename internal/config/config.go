// Package config manages VBS configuration and the .vbs directory structure.
// It handles loading, saving, and initializing the project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	VBSDir      = ".vbs"
	ConfigFile  = "config"
	BoardsFile  = "boards.db"
	HistoryFile = "history.db"
)

// ErrNotInitialized is returned when no .vbs directory is found.
var ErrNotInitialized = errors.New("not a vbs project (or any parent up to root)")

// Config represents the VBS configuration
type Config struct {
	SearchURL     string       `toml:"search_url"`
	EvalURL       string       `toml:"eval_url"`
	Username      string       `toml:"username,omitempty"`
	FPS           float64      `toml:"fps"`
	TopK          int          `toml:"top_k"`
	WindowBefore  int          `toml:"window_before"`
	WindowAfter   int          `toml:"window_after"`
	SubmitTimeout Duration     `toml:"submit_timeout"`
	GroupedIndex  string       `toml:"grouped_index"`
	VideoMetadata string       `toml:"video_metadata,omitempty"`
	WatchIndex    string       `toml:"watch_index,omitempty"`
	Server        ServerConfig `toml:"server"`
	path          string       // path to .vbs directory
}

// ServerConfig holds the HTTP API settings used by `vbs server start`.
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	AccessToken       string   `toml:"access_token,omitempty"`
	AdminToken        string   `toml:"admin_token,omitempty"`
	Webhooks          []string `toml:"webhooks,omitempty"`
	BoardTTL          Duration `toml:"board_ttl"`
	PruneInterval     Duration `toml:"prune_interval"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// Duration is a time.Duration stored as a string such as "10s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		SearchURL:     "http://localhost:8000",
		EvalURL:       "https://eventretrieval.oj.io.vn/api/v2",
		FPS:           25,
		TopK:          100,
		WindowBefore:  19,
		WindowAfter:   80,
		SubmitTimeout: Duration{10 * time.Second},
		GroupedIndex:  "data/grouped_keyframes.json",
		Server: ServerConfig{
			Addr:              ":8720",
			BoardTTL:          Duration{72 * time.Hour},
			PruneInterval:     Duration{time.Hour},
			RequestsPerMinute: 600,
		},
	}
}

// Validate checks the values that would break the window or submission code.
func (c *Config) Validate() error {
	switch {
	case c.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %v", c.FPS)
	case c.TopK <= 0:
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	case c.WindowBefore < 0 || c.WindowAfter < 0:
		return fmt.Errorf("window_before and window_after must not be negative")
	case c.SubmitTimeout.Duration <= 0:
		return fmt.Errorf("submit_timeout must be positive")
	case c.GroupedIndex == "":
		return fmt.Errorf("grouped_index is required")
	case c.Server.BoardTTL.Duration < 0 || c.Server.PruneInterval.Duration < 0:
		return fmt.Errorf("server.board_ttl and server.prune_interval must not be negative")
	}
	return nil
}

// FindVBSRoot finds the .vbs directory by walking up from the current directory
func FindVBSRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		vbsPath := filepath.Join(dir, VBSDir)
		if info, err := os.Stat(vbsPath); err == nil && info.IsDir() {
			return vbsPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotInitialized
		}
		dir = parent
	}
}

// Load loads the configuration from the nearest .vbs directory.
// Missing fields keep their defaults.
func Load() (*Config, error) {
	vbsPath, err := FindVBSRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(vbsPath)
}

// LoadFrom loads the configuration stored in a given .vbs directory.
func LoadFrom(vbsPath string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(vbsPath, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.path = vbsPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// VBSPath returns the path to the .vbs directory
func (c *Config) VBSPath() string {
	return c.path
}

// Resolve makes a configured path absolute relative to the project root,
// the directory that contains .vbs.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

// BoardsPath returns the path to the bbolt board database
func (c *Config) BoardsPath() string {
	return filepath.Join(c.path, BoardsFile)
}

// HistoryPath returns the path to the SQLite submission log
func (c *Config) HistoryPath() string {
	return filepath.Join(c.path, HistoryFile)
}

// Initialize creates a new .vbs directory in dir with cfg, or the defaults
// when cfg is nil.
func Initialize(dir string, cfg *Config) (*Config, error) {
	vbsPath := filepath.Join(dir, VBSDir)

	if _, err := os.Stat(vbsPath); err == nil {
		return nil, fmt.Errorf("vbs project already exists")
	}

	if err := os.MkdirAll(vbsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .vbs directory: %w", err)
	}

	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		os.RemoveAll(vbsPath)
		return nil, err
	}
	cfg.path = vbsPath

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(vbsPath)
		return nil, err
	}

	return cfg, nil
}
