package update

import (
	"context"
	"fmt"
	"os"

	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/types"
)

// InPlaceStrategy replaces the running installation where it lives, with a
// sibling backup that is restored if the swap fails.
type InPlaceStrategy struct {
	currentPath string
	backupPath  string
}

// NewInPlaceStrategy creates an in-place strategy for the installation at currentPath.
func NewInPlaceStrategy(currentPath string) *InPlaceStrategy {
	return &InPlaceStrategy{
		currentPath: currentPath,
		backupPath:  currentPath + ".backup",
	}
}

func (s *InPlaceStrategy) Kind() types.StrategyKind { return types.StrategyInPlace }

// BackupPath returns the sibling path the old installation is parked at.
func (s *InPlaceStrategy) BackupPath() string { return s.backupPath }

// TryInstall swaps the staged bundle into the running installation's location.
func (s *InPlaceStrategy) TryInstall(_ context.Context, bundle *StagedBundle) InstallResult {
	target := InstallTarget{Kind: types.StrategyInPlace, DestinationPath: s.currentPath}

	if s.currentPath == "" {
		return failed(target, fmt.Errorf("location of the running installation is unknown"), true)
	}
	if !exists(s.currentPath) {
		return failed(target, fmt.Errorf("running installation not found at %s", s.currentPath), true)
	}
	if err := ensureWritable(s.currentPath); err != nil {
		return denied(target, &PermissionDeniedError{Strategy: types.StrategyInPlace, Path: s.currentPath, Err: err})
	}

	if err := s.Replace(bundle.Path); err != nil {
		if isPermission(err) {
			return denied(target, &PermissionDeniedError{Strategy: types.StrategyInPlace, Path: s.currentPath, Err: err})
		}
		return failed(target, err, true)
	}

	return installed(target)
}

// Replace moves the current installation aside and the new bundle into its place.
func (s *InPlaceStrategy) Replace(newBundle string) error {
	log := logging.L("in-place").WithField(logging.KeyPath, s.currentPath)

	// 1. Clear a backup left over from an earlier run
	if err := os.RemoveAll(s.backupPath); err != nil {
		return fmt.Errorf("failed to remove stale backup: %w", err)
	}

	// 2. Park the current installation at the backup path
	if err := moveTree(s.currentPath, s.backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// 3. Move the new bundle into the vacated location
	if err := moveTree(newBundle, s.currentPath); err != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("rollback after failed replace also failed")
		}
		return fmt.Errorf("failed to replace installation: %w", err)
	}

	// 4. Drop the backup once the new installation is confirmed in place
	if !exists(s.currentPath) {
		if rbErr := s.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("rollback after missing installation also failed")
		}
		return fmt.Errorf("new installation missing after move")
	}
	if err := os.RemoveAll(s.backupPath); err != nil {
		log.WithError(err).Warn("failed to remove backup")
	}

	return nil
}

// Rollback restores the backup over whatever is at the current path.
func (s *InPlaceStrategy) Rollback() error {
	// 1. Check if backup exists
	if !exists(s.backupPath) {
		return fmt.Errorf("backup not found: %s", s.backupPath)
	}

	// 2. Clear any partial new installation
	if err := os.RemoveAll(s.currentPath); err != nil {
		return fmt.Errorf("failed to clear partial install: %w", err)
	}

	// 3. Restore from backup
	if err := moveTree(s.backupPath, s.currentPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}

	return nil
}
