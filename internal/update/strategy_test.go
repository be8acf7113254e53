package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/hoist/internal/types"
)

func targetFor(kind types.StrategyKind) InstallTarget {
	return InstallTarget{Kind: kind, DestinationPath: "/dest/" + kind.String()}
}

func TestNewChain_Order(t *testing.T) {
	inPlace := &fakeStrategy{kind: types.StrategyInPlace}
	user := &fakeStrategy{kind: types.StrategyUser}
	system := &fakeStrategy{kind: types.StrategySystem}

	chain, err := NewChain(inPlace, user, system)
	require.NoError(t, err)
	assert.Equal(t, []types.StrategyKind{types.StrategyInPlace, types.StrategyUser, types.StrategySystem}, chain.Kinds())

	chain, err = NewChain(user, system)
	require.NoError(t, err, "strategies may be omitted")
	assert.Len(t, chain.Kinds(), 2)

	_, err = NewChain(system, user)
	assert.Error(t, err, "out of order")

	_, err = NewChain(user, user)
	assert.Error(t, err, "duplicate kind")

	_, err = NewChain()
	assert.Error(t, err, "empty chain")
}

func TestChainInstall(t *testing.T) {
	boom := errors.New("boom")
	deniedErr := &PermissionDeniedError{Strategy: types.StrategyInPlace, Path: "/x"}

	tests := []struct {
		name      string
		results   [3]InstallResult
		wantKind  types.StrategyKind
		wantErr   error
		wantCalls [3]int
	}{
		{
			name: "first strategy installs",
			results: [3]InstallResult{
				installed(targetFor(types.StrategyInPlace)),
				installed(targetFor(types.StrategyUser)),
				installed(targetFor(types.StrategySystem)),
			},
			wantKind:  types.StrategyInPlace,
			wantCalls: [3]int{1, 0, 0},
		},
		{
			name: "permission denied falls through",
			results: [3]InstallResult{
				denied(targetFor(types.StrategyInPlace), deniedErr),
				installed(targetFor(types.StrategyUser)),
				installed(targetFor(types.StrategySystem)),
			},
			wantKind:  types.StrategyUser,
			wantCalls: [3]int{1, 1, 0},
		},
		{
			name: "recoverable failure falls through",
			results: [3]InstallResult{
				failed(targetFor(types.StrategyInPlace), boom, true),
				denied(targetFor(types.StrategyUser), deniedErr),
				installed(targetFor(types.StrategySystem)),
			},
			wantKind:  types.StrategySystem,
			wantCalls: [3]int{1, 1, 1},
		},
		{
			name: "unrecoverable failure stops the chain",
			results: [3]InstallResult{
				denied(targetFor(types.StrategyInPlace), deniedErr),
				failed(targetFor(types.StrategyUser), boom, false),
				installed(targetFor(types.StrategySystem)),
			},
			wantErr:   boom,
			wantCalls: [3]int{1, 1, 0},
		},
		{
			name: "exhausted chain reports the last error",
			results: [3]InstallResult{
				failed(targetFor(types.StrategyInPlace), boom, true),
				denied(targetFor(types.StrategyUser), deniedErr),
				denied(targetFor(types.StrategySystem), &ElevationDeniedError{Reason: "declined"}),
			},
			wantErr:   &ElevationDeniedError{},
			wantCalls: [3]int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategies := []*fakeStrategy{
				{kind: types.StrategyInPlace, result: tt.results[0]},
				{kind: types.StrategyUser, result: tt.results[1]},
				{kind: types.StrategySystem, result: tt.results[2]},
			}
			chain, err := NewChain(strategies[0], strategies[1], strategies[2])
			require.NoError(t, err)

			got, err := chain.Install(context.Background(), &StagedBundle{Path: "/scratch/App.app"})

			switch want := tt.wantErr.(type) {
			case nil:
				require.NoError(t, err)
				assert.Equal(t, tt.wantKind, got.Kind)
			case *ElevationDeniedError:
				assert.Nil(t, got)
				assert.ErrorAs(t, err, &want)
			default:
				assert.Nil(t, got)
				assert.ErrorIs(t, err, want)
			}

			for i, s := range strategies {
				assert.Equal(t, tt.wantCalls[i], s.Calls(), "calls to %s", s.kind)
			}
		})
	}
}

func TestUserScopedStrategy(t *testing.T) {
	tmpDir := t.TempDir()
	userDir := filepath.Join(tmpDir, "home", "Applications")
	staged := makeBundle(t, filepath.Join(tmpDir, "scratch"), "App.app", "v2")

	s := NewUserScopedStrategy(userDir)
	assert.Equal(t, types.StrategyUser, s.Kind())

	res := s.TryInstall(context.Background(), &StagedBundle{Path: staged})
	require.Equal(t, OutcomeInstalled, res.Outcome, "err: %v", res.Err)

	dest := filepath.Join(userDir, "App.app")
	assert.Equal(t, dest, res.Target.DestinationPath)
	assert.Equal(t, "v2", bundleMarker(t, dest))
	assert.NoDirExists(t, staged)
}

func TestUserScopedStrategy_ReplacesPriorInstall(t *testing.T) {
	tmpDir := t.TempDir()
	userDir := filepath.Join(tmpDir, "Applications")
	makeBundle(t, userDir, "App.app", "v1")
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "App.app", "stale-file"), []byte("x"), 0644))
	staged := makeBundle(t, filepath.Join(tmpDir, "scratch"), "App.app", "v2")

	res := NewUserScopedStrategy(userDir).TryInstall(context.Background(), &StagedBundle{Path: staged})
	require.Equal(t, OutcomeInstalled, res.Outcome, "err: %v", res.Err)

	assert.Equal(t, "v2", bundleMarker(t, filepath.Join(userDir, "App.app")))
	assert.NoFileExists(t, filepath.Join(userDir, "App.app", "stale-file"), "prior install is replaced, not merged")
}

func TestUserScopedStrategy_NoDirectory(t *testing.T) {
	res := NewUserScopedStrategy("").TryInstall(context.Background(), &StagedBundle{Path: "/scratch/App.app"})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Recoverable)
}

func TestUserScopedStrategy_ReadOnlyDirectory(t *testing.T) {
	skipIfRoot(t)

	tmpDir := t.TempDir()
	userDir := filepath.Join(tmpDir, "Applications")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.Chmod(userDir, 0555))
	t.Cleanup(func() { _ = os.Chmod(userDir, 0755) })
	staged := makeBundle(t, filepath.Join(tmpDir, "scratch"), "App.app", "v2")

	res := NewUserScopedStrategy(userDir).TryInstall(context.Background(), &StagedBundle{Path: staged})
	assert.Equal(t, OutcomePermissionDenied, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPermissionDenied)
	assert.DirExists(t, staged, "staged bundle is untouched")
}

// fakeBroker is a PrivilegeBroker that copies without elevation.
type fakeBroker struct {
	grant      bool
	requestErr error
	copyErr    error
	requests   int
	copies     int
}

func (b *fakeBroker) RequestElevation(context.Context) (bool, error) {
	b.requests++
	return b.grant, b.requestErr
}

func (b *fakeBroker) ElevatedCopy(_ context.Context, src, dst string) error {
	b.copies++
	if b.copyErr != nil {
		return b.copyErr
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyTree(src, dst)
}

func TestSystemScopedStrategy(t *testing.T) {
	tmpDir := t.TempDir()
	systemDir := filepath.Join(tmpDir, "system")
	staged := makeBundle(t, filepath.Join(tmpDir, "scratch"), "App.app", "v2")

	broker := &fakeBroker{grant: true}
	s := NewSystemScopedStrategy(systemDir, broker)
	assert.Equal(t, types.StrategySystem, s.Kind())

	res := s.TryInstall(context.Background(), &StagedBundle{Path: staged})
	require.Equal(t, OutcomeInstalled, res.Outcome, "err: %v", res.Err)

	assert.Equal(t, filepath.Join(systemDir, "App.app"), res.Target.DestinationPath)
	assert.Equal(t, "v2", bundleMarker(t, res.Target.DestinationPath))
	assert.Equal(t, 1, broker.requests, "elevation is requested once")
	assert.Equal(t, 1, broker.copies)
}

func TestSystemScopedStrategy_Denied(t *testing.T) {
	tests := []struct {
		name            string
		broker          PrivilegeBroker
		wantOutcome     Outcome
		wantRecoverable bool
	}{
		{
			name:        "no broker",
			broker:      nil,
			wantOutcome: OutcomePermissionDenied,
		},
		{
			name:        "user declines",
			broker:      &fakeBroker{grant: false},
			wantOutcome: OutcomePermissionDenied,
		},
		{
			name:        "prompt dismissed during copy",
			broker:      &fakeBroker{grant: true, copyErr: &ElevationDeniedError{Reason: "request was declined"}},
			wantOutcome: OutcomePermissionDenied,
		},
		{
			name:        "broker error",
			broker:      &fakeBroker{requestErr: errors.New("osascript not found")},
			wantOutcome: OutcomeFailed,
		},
		{
			name:        "copy fails",
			broker:      &fakeBroker{grant: true, copyErr: errors.New("cp: disk full")},
			wantOutcome: OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewSystemScopedStrategy("/Applications", tt.broker).
				TryInstall(context.Background(), &StagedBundle{Path: "/scratch/App.app"})

			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantRecoverable, res.Recoverable)
			assert.Error(t, res.Err)
		})
	}
}

// Without a broker the system strategy reports denial rather than failing.
func TestSystemScopedStrategy_NilInterface(t *testing.T) {
	var broker PrivilegeBroker
	res := NewSystemScopedStrategy("/Applications", broker).
		TryInstall(context.Background(), &StagedBundle{Path: "/scratch/App.app"})

	var elevation *ElevationDeniedError
	require.ErrorAs(t, res.Err, &elevation)
	assert.Equal(t, "no privilege broker configured", elevation.Reason)
}
