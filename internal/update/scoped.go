package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/hoist/internal/logging"
	"github.com/adamancini/hoist/internal/types"
)

// UserScopedStrategy installs into a per-user directory that needs no elevation.
type UserScopedStrategy struct {
	dir string
}

// NewUserScopedStrategy creates a strategy installing into dir.
func NewUserScopedStrategy(dir string) *UserScopedStrategy {
	return &UserScopedStrategy{dir: dir}
}

func (s *UserScopedStrategy) Kind() types.StrategyKind { return types.StrategyUser }

// TryInstall moves the bundle to <dir>/<bundle name>, replacing a prior install.
func (s *UserScopedStrategy) TryInstall(_ context.Context, bundle *StagedBundle) InstallResult {
	dest := filepath.Join(s.dir, bundle.Name())
	target := InstallTarget{Kind: types.StrategyUser, DestinationPath: dest}
	deny := func(err error) InstallResult {
		return denied(target, &PermissionDeniedError{Strategy: types.StrategyUser, Path: s.dir, Err: err})
	}

	if s.dir == "" {
		return failed(target, fmt.Errorf("no user install directory configured"), true)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		if isPermission(err) {
			return deny(err)
		}
		return failed(target, fmt.Errorf("failed to create %s: %w", s.dir, err), true)
	}
	if err := probeWritable(s.dir); err != nil {
		return deny(err)
	}

	if exists(dest) {
		logging.L("user").WithField(logging.KeyPath, dest).Info("removing prior user install")
		if err := os.RemoveAll(dest); err != nil {
			return failed(target, &DestinationBusyError{Path: dest, Err: err}, false)
		}
	}

	if err := moveTree(bundle.Path, dest); err != nil {
		if isPermission(err) {
			return deny(err)
		}
		return failed(target, fmt.Errorf("failed to move bundle to %s: %w", dest, err), true)
	}

	return installed(target)
}

// SystemScopedStrategy installs into a machine-wide directory through a
// privilege broker. Elevation is requested once per call.
type SystemScopedStrategy struct {
	dir    string
	broker PrivilegeBroker
}

// NewSystemScopedStrategy creates a strategy installing into dir via broker.
func NewSystemScopedStrategy(dir string, broker PrivilegeBroker) *SystemScopedStrategy {
	return &SystemScopedStrategy{dir: dir, broker: broker}
}

func (s *SystemScopedStrategy) Kind() types.StrategyKind { return types.StrategySystem }

// TryInstall elevates and copies the bundle to <dir>/<bundle name>.
func (s *SystemScopedStrategy) TryInstall(ctx context.Context, bundle *StagedBundle) InstallResult {
	dest := filepath.Join(s.dir, bundle.Name())
	target := InstallTarget{Kind: types.StrategySystem, DestinationPath: dest}

	if s.broker == nil {
		return denied(target, &ElevationDeniedError{Reason: "no privilege broker configured"})
	}

	granted, err := s.broker.RequestElevation(ctx)
	if err != nil {
		return failed(target, &ElevationDeniedError{Err: err}, false)
	}
	if !granted {
		return denied(target, &ElevationDeniedError{Reason: "request was declined"})
	}

	if err := s.broker.ElevatedCopy(ctx, bundle.Path, dest); err != nil {
		var deniedErr *ElevationDeniedError
		if errors.As(err, &deniedErr) {
			return denied(target, deniedErr)
		}
		return failed(target, fmt.Errorf("privileged copy to %s failed: %w", dest, err), false)
	}

	return installed(target)
}
