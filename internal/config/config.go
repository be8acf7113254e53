// Package config handles Hoistfile parsing and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adamancini/hoist/internal/types"
)

// ErrNotFound is returned by FindHoistfile when no file exists in any standard location.
var ErrNotFound = errors.New("no Hoistfile found in standard locations")

// Defaults applied by ApplyDefaults.
const (
	DefaultBundleSuffix    = ".app"
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultLogLevel        = "warn"
	DefaultHistoryKeep     = 20
)

// Hoistfile represents the parsed configuration file.
type Hoistfile struct {
	Version    int            `yaml:"version" toml:"version" json:"version"`
	App        AppConfig      `yaml:"app" toml:"app" json:"app"`
	Release    ReleaseConfig  `yaml:"release" toml:"release" json:"release"`
	Install    InstallConfig  `yaml:"install" toml:"install" json:"install"`
	Download   DownloadConfig `yaml:"download" toml:"download" json:"download"`
	Unpack     UnpackConfig   `yaml:"unpack" toml:"unpack" json:"unpack"`
	ScratchDir string         `yaml:"scratch_dir,omitempty" toml:"scratch_dir,omitempty" json:"scratch_dir,omitempty"` // Parent for per-attempt working dirs; never removed
	Log        LogConfig      `yaml:"log" toml:"log" json:"log"`
	History    HistoryConfig  `yaml:"history" toml:"history" json:"history"`
}

// AppConfig describes the application being updated.
type AppConfig struct {
	Name         string `yaml:"name" toml:"name" json:"name"`
	BundleSuffix string `yaml:"bundle_suffix,omitempty" toml:"bundle_suffix,omitempty" json:"bundle_suffix,omitempty"`
	CurrentPath  string `yaml:"current_path,omitempty" toml:"current_path,omitempty" json:"current_path,omitempty"` // Running installation; detected from the executable when empty
}

// ReleaseConfig selects where release metadata comes from.
type ReleaseConfig struct {
	Source   types.SourceType `yaml:"source" toml:"source" json:"source"`
	Repo     string           `yaml:"repo,omitempty" toml:"repo,omitempty" json:"repo,omitempty"`    // github: owner/name
	Asset    string           `yaml:"asset,omitempty" toml:"asset,omitempty" json:"asset,omitempty"` // github: asset name glob or suffix
	TokenEnv string           `yaml:"token_env,omitempty" toml:"token_env,omitempty" json:"token_env,omitempty"`
	URL      string           `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"` // static: archive URL
	Version  string           `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	Notes    string           `yaml:"notes,omitempty" toml:"notes,omitempty" json:"notes,omitempty"`
	Checksum string           `yaml:"checksum,omitempty" toml:"checksum,omitempty" json:"checksum,omitempty"`
}

// InstallConfig controls the install strategy chain.
type InstallConfig struct {
	UserDir    string               `yaml:"user_dir,omitempty" toml:"user_dir,omitempty" json:"user_dir,omitempty"`
	SystemDir  string               `yaml:"system_dir,omitempty" toml:"system_dir,omitempty" json:"system_dir,omitempty"`
	Strategies []types.StrategyKind `yaml:"strategies,omitempty" toml:"strategies,omitempty" json:"strategies,omitempty"`
	Broker     types.BrokerType     `yaml:"broker,omitempty" toml:"broker,omitempty" json:"broker,omitempty"`
}

// DownloadConfig tunes the archive download.
type DownloadConfig struct {
	Timeout   string `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration, e.g. "5m"
	UserAgent string `yaml:"user_agent,omitempty" toml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// TimeoutDuration returns the parsed timeout, or the default if unset or invalid.
func (d DownloadConfig) TimeoutDuration() time.Duration {
	if d.Timeout == "" {
		return DefaultDownloadTimeout
	}
	timeout, err := time.ParseDuration(d.Timeout)
	if err != nil || timeout <= 0 {
		return DefaultDownloadTimeout
	}
	return timeout
}

// UnpackConfig selects the extraction backend.
type UnpackConfig struct {
	Mode types.UnpackMode `yaml:"mode,omitempty" toml:"mode,omitempty" json:"mode,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"` // "" or "console" logs to stderr
	Format string `yaml:"format,omitempty" toml:"format,omitempty" json:"format,omitempty"`
}

// HistoryConfig controls update receipts.
type HistoryConfig struct {
	Dir  string `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`
	Keep int    `yaml:"keep,omitempty" toml:"keep,omitempty" json:"keep,omitempty"`
}

// Default returns a Hoistfile with only defaults, used when no file exists.
func Default() *Hoistfile {
	h := &Hoistfile{Version: 1}
	h.ApplyDefaults()
	return h
}

// ApplyDefaults fills unset fields.
func (h *Hoistfile) ApplyDefaults() {
	if h.App.BundleSuffix == "" {
		h.App.BundleSuffix = DefaultBundleSuffix
	}
	if h.Release.Source == "" {
		switch {
		case h.Release.Repo != "":
			h.Release.Source = types.SourceTypeGitHub
		case h.Release.URL != "":
			h.Release.Source = types.SourceTypeStatic
		}
	}
	if len(h.Install.Strategies) == 0 {
		h.Install.Strategies = types.AllStrategyKinds()
	}
	h.Unpack.Mode = h.Unpack.Mode.Default()
	if h.Log.Level == "" {
		h.Log.Level = DefaultLogLevel
	}
	if h.History.Keep == 0 {
		h.History.Keep = DefaultHistoryKeep
	}
	if h.History.Dir == "" {
		h.History.Dir = defaultHistoryDir()
	}
}

// Token returns the release API token from the configured environment variable.
func (h *Hoistfile) Token() string {
	if h.Release.TokenEnv == "" {
		return ""
	}
	return os.Getenv(h.Release.TokenEnv)
}

// defaultHistoryDir follows XDG_STATE_HOME, falling back to ~/.local/state.
func defaultHistoryDir() string {
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "hoist", "history")
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "hoist", "history")
}

// FindHoistfile searches for a Hoistfile in the standard locations.
// Returns the path to the first Hoistfile found, or ErrNotFound.
func FindHoistfile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Hoistfile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check HOISTFILE environment variable
	if envPath := os.Getenv("HOISTFILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// Get home directory (required for standard locations)
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	// Build search paths in order of precedence
	var searchPaths []string

	// XDG_CONFIG_HOME or default
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	searchPaths = append(searchPaths, filepath.Join(xdgConfig, "hoist"))

	// ~/.hoist
	searchPaths = append(searchPaths, filepath.Join(home, ".hoist"))

	// Home directory root
	searchPaths = append(searchPaths, home)

	// File name variants
	fileNames := []string{
		"Hoistfile",
		"Hoistfile.yaml",
		"Hoistfile.yml",
		"Hoistfile.toml",
		"Hoistfile.json",
		".Hoistfile",
		".Hoistfile.yaml",
		".Hoistfile.yml",
		".Hoistfile.toml",
		".Hoistfile.json",
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

// Load reads, parses, defaults and validates a Hoistfile from the given path.
func Load(path string) (*Hoistfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Hoistfile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	hoistfile, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	hoistfile.ApplyDefaults()

	if err := Validate(hoistfile); err != nil {
		return nil, err
	}

	return hoistfile, nil
}
