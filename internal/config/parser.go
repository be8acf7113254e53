package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/adamancini/hoist/internal/types"
)

// Format represents the file format of a Hoistfile.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// detectFormat determines the file format based on extension or content.
func detectFormat(path string, content []byte) Format {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}

	// Content sniffing for extensionless files
	return sniffFormat(content)
}

// sniffFormat attempts to detect format from content.
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}

	// TOML has [sections] or key = value; YAML uses key: value.
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") || strings.Contains(line, " = ") {
			return FormatTOML
		}
		if strings.Contains(line, ":") {
			return FormatYAML
		}
	}

	return FormatUnknown
}

// rawInstall mirrors InstallConfig but accepts strategies as either a
// list or a comma-separated string.
type rawInstall struct {
	UserDir    string           `yaml:"user_dir" toml:"user_dir" json:"user_dir"`
	SystemDir  string           `yaml:"system_dir" toml:"system_dir" json:"system_dir"`
	Strategies interface{}      `yaml:"strategies" toml:"strategies" json:"strategies"`
	Broker     types.BrokerType `yaml:"broker" toml:"broker" json:"broker"`
}

// rawHoistfile is an intermediate representation for parsing.
type rawHoistfile struct {
	Version    int            `yaml:"version" toml:"version" json:"version"`
	App        AppConfig      `yaml:"app" toml:"app" json:"app"`
	Release    ReleaseConfig  `yaml:"release" toml:"release" json:"release"`
	Install    rawInstall     `yaml:"install" toml:"install" json:"install"`
	Download   DownloadConfig `yaml:"download" toml:"download" json:"download"`
	Unpack     UnpackConfig   `yaml:"unpack" toml:"unpack" json:"unpack"`
	ScratchDir string         `yaml:"scratch_dir" toml:"scratch_dir" json:"scratch_dir"`
	Log        LogConfig      `yaml:"log" toml:"log" json:"log"`
	History    HistoryConfig  `yaml:"history" toml:"history" json:"history"`
}

// parseStrategies converts the flexible strategy format to StrategyKinds.
// Strategies can be specified as:
//   - A list: ["in-place", "user"]
//   - A comma-separated string: "in-place, user"
//
// Unknown names are kept verbatim so Validate can report them by position.
func parseStrategies(raw interface{}) ([]types.StrategyKind, error) {
	var names []string

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	case []interface{}:
		for i, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("install.strategies[%d]: invalid format (expected string)", i)
			}
			names = append(names, name)
		}
	default:
		return nil, fmt.Errorf("install.strategies: invalid format (expected list or string)")
	}

	kinds := make([]types.StrategyKind, 0, len(names))
	for _, name := range names {
		kind, err := types.ParseStrategyKind(name)
		if err != nil {
			kind = types.StrategyKind(name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns in content.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

// parse parses the content according to the specified format.
func parse(content []byte, format Format) (*Hoistfile, error) {
	content = expandEnvVars(content)

	var raw rawHoistfile

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown file format")
	}

	strategies, err := parseStrategies(raw.Install.Strategies)
	if err != nil {
		return nil, err
	}

	return &Hoistfile{
		Version: raw.Version,
		App:     raw.App,
		Release: raw.Release,
		Install: InstallConfig{
			UserDir:    raw.Install.UserDir,
			SystemDir:  raw.Install.SystemDir,
			Strategies: strategies,
			Broker:     raw.Install.Broker,
		},
		Download:   raw.Download,
		Unpack:     raw.Unpack,
		ScratchDir: raw.ScratchDir,
		Log:        raw.Log,
		History:    raw.History,
	}, nil
}
