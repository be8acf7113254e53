package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/hoist/internal/config"
	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/output"
	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
)

// loadConfig finds and loads the Hoistfile. A missing file is not an
// error: defaults are used and the release source must come from flags.
func loadConfig(path string) (*config.Hoistfile, error) {
	found, err := config.FindHoistfile(expandHomePath(path))
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", found, err)
	}
	logging.L("cmd").WithField(logging.KeyPath, found).Debug("loaded Hoistfile")
	return cfg, nil
}

// releaseFlags override the Hoistfile's release section.
type releaseFlags struct {
	url      string
	version  string
	checksum string
	repo     string
}

// newReleaseSource picks the release source: --url, then --repo, then the Hoistfile.
func newReleaseSource(cfg *config.Hoistfile, f releaseFlags) (update.ReleaseSource, error) {
	if f.url != "" {
		return update.NewStaticSource(update.ReleaseArtifact{
			Version:     f.version,
			DownloadURL: f.url,
			Checksum:    f.checksum,
		}), nil
	}

	repo := cfg.Release.Repo
	source := cfg.Release.Source
	if f.repo != "" {
		repo, source = f.repo, types.SourceTypeGitHub
	}

	switch source {
	case types.SourceTypeGitHub:
		src, err := update.NewGitHubSource(repo)
		if err != nil {
			return nil, err
		}
		return src.WithToken(cfg.Token()).WithAssetPattern(cfg.Release.Asset), nil

	case types.SourceTypeStatic:
		if cfg.Release.Version == "" {
			return nil, errors.New("release.version is required for a static release source")
		}
		checksum := cfg.Release.Checksum
		if f.checksum != "" {
			checksum = f.checksum
		}
		return update.NewStaticSource(update.ReleaseArtifact{
			Version:     cfg.Release.Version,
			DownloadURL: cfg.Release.URL,
			Notes:       cfg.Release.Notes,
			Checksum:    checksum,
		}), nil
	}

	return nil, errors.New("no release source configured: set release.repo or release.url in the Hoistfile, or pass --repo or --url")
}

// currentInstallation returns the bundle to replace in place, or "" when
// it cannot be determined. The in-place strategy then falls through.
func currentInstallation(cfg *config.Hoistfile) string {
	if cfg.App.CurrentPath != "" {
		return expandHomePath(cfg.App.CurrentPath)
	}
	path, err := update.CurrentInstallation(cfg.App.BundleSuffix)
	if err != nil {
		logging.L("cmd").WithError(err).Debug("running installation not found")
		return ""
	}
	return path
}

// newChain builds the strategy chain in the Hoistfile's order.
func newChain(cfg *config.Hoistfile, current string) (*update.Chain, error) {
	platform := update.Detect()

	var strategies []update.Strategy
	for _, kind := range cfg.Install.Strategies {
		switch kind {
		case types.StrategyInPlace:
			strategies = append(strategies, update.NewInPlaceStrategy(current))

		case types.StrategyUser:
			dir := expandHomePath(cfg.Install.UserDir)
			if dir == "" {
				d, err := platform.DefaultUserDir()
				if err != nil {
					return nil, err
				}
				dir = d
			}
			strategies = append(strategies, update.NewUserScopedStrategy(dir))

		case types.StrategySystem:
			dir := cfg.Install.SystemDir
			if dir == "" {
				dir = platform.DefaultSystemDir()
			}
			broker := update.NewBroker(cfg.Install.Broker, nil)
			strategies = append(strategies, update.NewSystemScopedStrategy(dir, broker))

		default:
			return nil, fmt.Errorf("unknown install strategy: %s", kind)
		}
	}

	return update.NewChain(strategies...)
}

// newUnpacker returns the configured extraction backend.
func newUnpacker(cfg *config.Hoistfile) update.Unpacker {
	if cfg.Unpack.Mode == types.UnpackCommand {
		return update.NewCommandUnpacker(cfg.App.BundleSuffix, nil)
	}
	return update.NewArchiveUnpacker(cfg.App.BundleSuffix)
}

// newWriter returns an output writer for the global --output flag.
func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
